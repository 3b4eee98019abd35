package dump

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

var jsonConfig = jsoniter.Config{
	EscapeHTML:    false,
	IndentionStep: 2,
}.Froze()

// JSON writes r as an indented JSON document followed by a newline.
func JSON(w io.Writer, r *Report) error {
	stream := jsonConfig.BorrowStream(w)
	defer jsonConfig.ReturnStream(stream)

	stream.WriteVal(r)
	stream.WriteRaw("\n")
	if stream.Error != nil {
		return stream.Error
	}
	return stream.Flush()
}
