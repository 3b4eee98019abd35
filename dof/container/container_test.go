package container

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zboralski/dof-dumper/dof"
	"github.com/zboralski/dof-dumper/dof/dif"
	"github.com/zboralski/dof-dumper/dof/source"
	"github.com/zboralski/dof-dumper/internal/doftest"
)

func openImage(t *testing.T, img []byte, opt dof.Options) *Container {
	t.Helper()
	c, err := Open(source.NewBlob(img, 0x1000), opt)
	require.NoError(t, err)
	return c
}

func TestOpenHeader(t *testing.T) {
	b := doftest.New()
	strs, _ := doftest.StrTab("foo")
	b.Add(dof.SectStrTab, 0, strs)
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	h := c.Header()
	assert.Equal(t, uint8(dof.ModelLP64), h.Model)
	assert.Equal(t, uint8(dof.EncodingLSB), h.Encoding)
	assert.Equal(t, uint8(2), h.DifVers)
	assert.Equal(t, uint8(8), h.DifIReg)
	assert.Equal(t, uint32(dof.HeaderSize), h.HdrSize)
	assert.Equal(t, uint32(dof.SecHeaderSize), h.SecSize)
	assert.Equal(t, uint64(dof.HeaderSize), h.SecOff)
	assert.Equal(t, 1, c.NumSections())
	assert.Equal(t, binary.LittleEndian, c.ByteOrder())
	assert.Equal(t, uint64(0x1000), c.Addr())
}

func TestOpenBigEndian(t *testing.T) {
	b := doftest.NewMSB()
	strs, offs := doftest.StrTab("foo")
	b.Add(dof.SectStrTab, 0, strs)
	c := openImage(t, b.Bytes(), dof.DefaultOptions())
	assert.Equal(t, binary.BigEndian, c.ByteOrder())
	assert.Equal(t, 1, c.NumSections())

	sec, err := c.GetSection(0)
	require.NoError(t, err)
	s, err := sec.(*StrTab).Str(uint64(offs[0]))
	require.NoError(t, err)
	assert.Equal(t, "foo", s)
}

func TestOpenBadMagic(t *testing.T) {
	for i := 0; i < 4; i++ {
		img := doftest.New().Bytes()
		img[i] ^= 0xff
		c, err := Open(source.NewBlob(img, 0), dof.DefaultOptions())
		assert.Nil(t, c)
		assert.True(t, errors.Is(err, dof.ErrMalformedContainer), "byte %d: %v", i, err)
	}
}

func TestOpenShortImage(t *testing.T) {
	img := doftest.New().Bytes()[:40]
	_, err := Open(source.NewBlob(img, 0), dof.DefaultOptions())
	assert.True(t, errors.Is(err, dof.ErrMalformedContainer))
}

func TestOpenSmallDescriptorStride(t *testing.T) {
	b := doftest.New()
	b.SecSize = 16
	b.Add(dof.SectStrTab, 0, []byte{0})
	_, err := Open(source.NewBlob(b.Bytes(), 0), dof.DefaultOptions())
	assert.True(t, errors.Is(err, dof.ErrMalformedContainer))
}

func TestOpenBadLayout(t *testing.T) {
	opt := dof.DefaultOptions()
	opt.Layout.SecIdxSize = 3
	_, err := Open(source.NewBlob(doftest.New().Bytes(), 0), opt)
	assert.True(t, errors.Is(err, dof.ErrMalformedContainer))
}

func TestStrTab(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectStrTab, 0, []byte("\x00foo\x00"))
	b.Add(dof.SectStrTab, 0, []byte("\x00ab"))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(0)
	require.NoError(t, err)
	st := sec.(*StrTab)
	assert.Equal(t, 5, st.Len())

	s, err := st.Str(1)
	require.NoError(t, err)
	assert.Equal(t, "foo", s)

	s, err = st.Str(0)
	require.NoError(t, err)
	assert.Equal(t, "", s)

	_, err = st.Str(5)
	assert.True(t, errors.Is(err, dof.ErrOutOfRange))

	sec, err = c.GetSection(1)
	require.NoError(t, err)
	s, err = sec.(*StrTab).Str(1)
	require.NoError(t, err)
	assert.Equal(t, "ab", s, "unterminated string runs to the end")
}

func TestIntTab(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectIntTab, 8, b.Record(uint64(7), uint64(0xdeadbeef), uint32(1)))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(0)
	require.NoError(t, err)
	it := sec.(*IntTab)
	assert.Equal(t, 2, it.Len(), "trailing partial entry is ignored")
	v, err := it.At(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), v)
	_, err = it.At(2)
	assert.True(t, errors.Is(err, dof.ErrOutOfRange))
}

func varRecord(b *doftest.Builder, name, id uint32, scope dof.Scope) []byte {
	return b.Record(name, id, uint8(1), uint8(scope), uint16(0), doftest.Pad(8))
}

func TestVarTabLookupMatchesScope(t *testing.T) {
	b := doftest.New()
	var data []byte
	data = append(data, varRecord(b, 1, 5, dof.ScopeGlobal)...)
	data = append(data, varRecord(b, 2, 5, dof.ScopeLocal)...)
	data = append(data, varRecord(b, 3, 6, dof.ScopeThread)...)
	b.Add(dof.SectVarTab, 20, data)
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(0)
	require.NoError(t, err)
	vt := sec.(*VarTab)
	require.Equal(t, 3, vt.Len())

	v, ok := vt.Lookup(5, dof.ScopeLocal)
	require.True(t, ok)
	assert.Equal(t, uint32(2), v.Name)

	v, ok = vt.Lookup(5, dof.ScopeGlobal)
	require.True(t, ok)
	assert.Equal(t, uint32(1), v.Name)

	_, ok = vt.Lookup(5, dof.ScopeThread)
	assert.False(t, ok)
	_, ok = vt.Lookup(6, dof.ScopeLocal)
	assert.False(t, ok)
}

func TestCode(t *testing.T) {
	b := doftest.New()
	ins := []dif.Instr{dif.Fmt(dif.OpRet, 0, 0, 1), dif.Fmt(36, 0, 0, 0)}
	b.Add(dof.SectDif, 4, b.Code(ins...))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(0)
	require.NoError(t, err)
	code := sec.(*Code)
	assert.Equal(t, ins, code.Instrs)
	_, err = code.At(2)
	assert.True(t, errors.Is(err, dof.ErrOutOfRange))
}

func TestUnknownTypeIsGeneric(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectionType(99), 0, []byte{1, 2, 3})
	b.Add(dof.SectTypTab, 0, nil)
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(0)
	require.NoError(t, err)
	g, ok := sec.(*Generic)
	require.True(t, ok)
	assert.Equal(t, "UNKNOWN(99)", g.Type.String())
	assert.Equal(t, uint64(3), g.Size)
	assert.True(t, g.Loadable())

	sec, err = c.GetSection(1)
	require.NoError(t, err)
	assert.IsType(t, &Generic{}, sec)
}

func TestSectionOutOfRange(t *testing.T) {
	b := doftest.New()
	b.AddSec(doftest.Sec{Type: dof.SectStrTab, Raw: true, Offset: 0x10000, Size: 4})
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	_, err := c.GetSection(0)
	assert.True(t, errors.Is(err, dof.ErrOutOfRange), "%v", err)

	_, err = c.GetSection(1)
	assert.True(t, errors.Is(err, dof.ErrUnresolvedSectionReference))
	_, err = c.GetSection(-1)
	assert.True(t, errors.Is(err, dof.ErrUnresolvedSectionReference))
}

func TestGetSectionCaches(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectStrTab, 0, []byte("\x00foo\x00"))
	b.AddSec(doftest.Sec{Type: dof.SectIntTab, Raw: true, Offset: 0x10000, Size: 8})
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	s1, err := c.GetSection(0)
	require.NoError(t, err)
	s2, err := c.GetSection(0)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	_, err1 := c.GetSection(1)
	_, err2 := c.GetSection(1)
	require.Error(t, err1)
	assert.Equal(t, err1, err2, "failures are cached too")
}

func TestReadLimit(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectStrTab, 0, make([]byte, 64))
	opt := dof.DefaultOptions()
	opt.MaxReadBytes = 32
	c := openImage(t, b.Bytes(), opt)
	_, err := c.GetSection(0)
	assert.True(t, errors.Is(err, dof.ErrOutOfRange))
}

func TestStepLimit(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectIntTab, 8, b.Record(uint64(1), uint64(2), uint64(3), uint64(4)))
	img := b.Bytes()

	_, err := openImage(t, img, dof.Options{Mode: dof.Strict, MaxSteps: 2}).GetSection(0)
	assert.Error(t, err)

	c := openImage(t, img, dof.Options{Mode: dof.BestEffort, MaxSteps: 2})
	sec, err := c.GetSection(0)
	require.NoError(t, err)
	assert.Equal(t, 2, sec.(*IntTab).Len())
	require.Len(t, c.Diagnostics(), 1)
	assert.Equal(t, dof.DiagClamped, c.Diagnostics()[0].Kind)
}

func TestSectionsModes(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectStrTab, 0, []byte("\x00foo\x00"))
	b.Add(dof.SectECBDesc, 0, b.Record(dof.SecIdx(9), dof.SecIdxNone, dof.SecIdxNone, doftest.Pad(4), uint64(0)))
	b.Add(dof.SectComments, 0, []byte("hi\x00"))
	img := b.Bytes()

	secs, err := openImage(t, img, dof.DefaultOptions()).Sections()
	assert.Nil(t, secs)
	assert.True(t, errors.Is(err, dof.ErrUnresolvedSectionReference))

	secs, err = openImage(t, img, dof.Options{Mode: dof.BestEffort}).Sections()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section 1")
	require.Len(t, secs, 2)
	assert.Equal(t, 0, secs[0].Header().Index)
	assert.Equal(t, 2, secs[1].Header().Index)
	assert.Equal(t, "hi", secs[1].(*Text).Text)
}

func TestSelfReferenceIsUnresolved(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectECBDesc, 0, b.Record(dof.SecIdx(0), dof.SecIdxNone, dof.SecIdxNone, doftest.Pad(4), uint64(0)))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())
	_, err := c.GetSection(0)
	assert.True(t, errors.Is(err, dof.ErrUnresolvedSectionReference))
}

func TestDescriptorOfBrokenSection(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectECBDesc, 0, b.Record(dof.SecIdx(0), dof.SecIdxNone, dof.SecIdxNone, doftest.Pad(4), uint64(0)))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())
	_, err := c.GetSection(0)
	require.Error(t, err)

	h, err := c.Descriptor(0)
	require.NoError(t, err)
	assert.Equal(t, dof.SectECBDesc, h.Type)
	assert.Equal(t, uint64(dof.HeaderSize), h.HdrOffset)

	_, err = c.Descriptor(1)
	assert.True(t, errors.Is(err, dof.ErrUnresolvedSectionReference))
}

func FuzzOpen(f *testing.F) {
	b := doftest.New()
	strs, offs := doftest.StrTab("prov", "fn", "probe")
	b.Add(dof.SectStrTab, 0, strs)
	b.Add(dof.SectProvider, 0, b.Record(dof.SecIdx(0), dof.SecIdx(2), dof.SecIdxNone, dof.SecIdxNone, offs[0], doftest.Pad(20), dof.SecIdxNone))
	b.Add(dof.SectProbes, 48, b.Record(uint64(0), offs[1], offs[2], offs[1], offs[1], doftest.Pad(24)))
	b.Add(dof.SectDif, 4, b.Code(dif.Fmt(dif.OpRet, 0, 0, 1)))
	b.Add(dof.SectDifoHdr, 0, b.Record(doftest.Pad(8), dof.SecIdx(3)))
	f.Add(b.Bytes())
	f.Add(doftest.NewMSB().Bytes())

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, opt := range []dof.Options{
			{Mode: dof.Strict, MaxSteps: 4096},
			{Mode: dof.BestEffort, MaxSteps: 4096},
		} {
			c, err := Open(source.NewBlob(data, 0), opt)
			if err != nil {
				continue
			}
			c.Sections()
		}
	})
}

func TestSectionTableOffsetWraps(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectStrTab, 0, []byte{0})
	b.Add(dof.SectStrTab, 0, []byte{0})
	img := b.Bytes()
	binary.LittleEndian.PutUint64(img[32:], math.MaxUint64-31)
	c := openImage(t, img, dof.DefaultOptions())

	for i := 0; i < 2; i++ {
		sec, err := c.GetSection(i)
		assert.Nil(t, sec)
		assert.True(t, errors.Is(err, dof.ErrOutOfRange), "section %d: %v", i, err)
	}
	_, err := c.Descriptor(1)
	assert.True(t, errors.Is(err, dof.ErrOutOfRange))
}

func TestAddOffset(t *testing.T) {
	off, err := addOffset(0x40, 0x20)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x60), off)

	_, err = addOffset(math.MaxUint64-7, 8)
	assert.True(t, errors.Is(err, dof.ErrOutOfRange))
	_, err = addOffset(math.MaxUint64, 0)
	assert.NoError(t, err)
}
