package container

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zboralski/dof-dumper/dof"
	"github.com/zboralski/dof-dumper/internal/doftest"
)

func probeRecord(b *doftest.Builder, addr uint64, fn, name, nargv, xargv uint32, xargc uint8) []byte {
	// Fields after xargv: argidx, offidx, nargc, xargc, noffs, enoffidx, nenoffs.
	return b.Record(addr, fn, name, nargv, xargv,
		uint32(0), uint32(0),
		uint8(0), xargc,
		uint16(1),
		uint32(0), uint16(1),
		doftest.Pad(6))
}

func TestProvider(t *testing.T) {
	b := doftest.New()
	strs, offs := doftest.StrTab("prov", "fn", "probe", "int")
	b.Add(dof.SectStrTab, 0, strs)
	b.Add(dof.SectProvider, 0, b.Record(dof.SecIdx(0), dof.SecIdx(2), dof.SecIdx(3), dof.SecIdx(4), offs[0],
		uint32(0x01010101), uint32(0x02020202), uint32(0x03030303), uint32(0x04040404), uint32(0x05050505),
		dof.SecIdx(5)))
	var probes []byte
	probes = append(probes, probeRecord(b, 0x1000, offs[1], offs[2], offs[1], offs[3], 1)...)
	probes = append(probes, probeRecord(b, 0x2000, offs[1], 999, offs[1], offs[1], 0)...)
	b.Add(dof.SectProbes, 48, probes)
	b.Add(dof.SectPrArgs, 1, []byte{0})
	b.Add(dof.SectPrOffs, 4, b.Words(0x10))
	b.Add(dof.SectPrEnOffs, 4, b.Words(0x20))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(1)
	require.NoError(t, err)
	p := sec.(*Provider)
	assert.Equal(t, "prov", p.Name)
	assert.Equal(t, dof.SecIdx(5), p.PrEnOffsIdx)
	assert.Equal(t, uint32(0x03030303), p.Attrs[2])
	require.Len(t, p.Probes, 2)

	pr := p.Probes[0]
	require.NoError(t, pr.Err)
	assert.Equal(t, uint64(0x1000), pr.Addr)
	assert.Equal(t, "fn", pr.Func)
	assert.Equal(t, "probe", pr.Name)
	assert.Equal(t, VoidArgs, pr.NativeArgs)
	assert.Equal(t, "int", pr.XlateArgs)
	assert.Equal(t, []uint8{0}, pr.ArgMap)
	assert.Equal(t, []uint32{0x10}, pr.Offsets)
	assert.Equal(t, []uint32{0x20}, pr.EnOffsets)

	assert.True(t, errors.Is(p.Probes[1].Err, dof.ErrOutOfRange))
	require.Len(t, c.Diagnostics(), 1)
	assert.Equal(t, dof.DiagOutOfRange, c.Diagnostics()[0].Kind)
	assert.Equal(t, 1, c.Diagnostics()[0].Section)
}

func TestProviderWithoutEnabledOffsets(t *testing.T) {
	b := doftest.New()
	strs, offs := doftest.StrTab("prov", "fn", "probe")
	b.Add(dof.SectStrTab, 0, strs)
	b.Add(dof.SectProvider, 0, b.Record(dof.SecIdx(0), dof.SecIdx(2), dof.SecIdxNone, dof.SecIdxNone, offs[0],
		doftest.Pad(20)))
	b.Add(dof.SectProbes, 48, probeRecord(b, 0, offs[1], offs[2], offs[1], offs[1], 0))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(1)
	require.NoError(t, err)
	p := sec.(*Provider)
	assert.Equal(t, dof.SecIdxNone, p.PrEnOffsIdx)
	require.Len(t, p.Probes, 1)
	assert.Equal(t, VoidArgs, p.Probes[0].XlateArgs)
	assert.Nil(t, p.Probes[0].Offsets)
}

func TestProviderBadProbeSection(t *testing.T) {
	tests := []struct {
		name    string
		typ     dof.SectionType
		entsize uint32
	}{
		{"zero entsize", dof.SectProbes, 0},
		{"short entsize", dof.SectProbes, 16},
		{"wrong type", dof.SectStrTab, 48},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := doftest.New()
			strs, offs := doftest.StrTab("prov")
			b.Add(dof.SectStrTab, 0, strs)
			b.Add(dof.SectProvider, 0, b.Record(dof.SecIdx(0), dof.SecIdx(2), dof.SecIdxNone, dof.SecIdxNone, offs[0],
				doftest.Pad(20), dof.SecIdxNone))
			b.Add(tt.typ, tt.entsize, make([]byte, 48))
			c := openImage(t, b.Bytes(), dof.DefaultOptions())
			_, err := c.GetSection(1)
			assert.True(t, errors.Is(err, dof.ErrUnresolvedSectionReference), "%v", err)
		})
	}
}

// ecbImage lays out an ECB whose predicate is NONE and whose probe and
// actions live at sections 2 and 5.
func ecbImage(b *doftest.Builder) []byte {
	strs, offs := doftest.StrTab("syscall", "open", "entry", "hello %d\n")
	b.Add(dof.SectStrTab, 0, strs)
	b.Add(dof.SectECBDesc, 0, b.Record(dof.SecIdx(2), dof.SecIdxNone, dof.SecIdx(5), doftest.Pad(4), uint64(42)))
	b.Add(dof.SectProbeDesc, 0, b.Record(dof.SecIdx(0), offs[0], uint32(0), offs[1], offs[2], uint32(7)))
	b.Add(dof.SectComments, 0, []byte("x\x00"))
	b.Add(dof.SectIntTab, 8, b.Record(uint64(1)))

	act := func(strtab dof.SecIdx, kind dof.ActionKind, arg uint64) []byte {
		return b.Record(dof.SecIdxNone, strtab, kind, uint32(0), arg, uint64(0))
	}
	var acts []byte
	acts = append(acts, act(0, dof.ActPrintf, uint64(offs[3]))...)
	acts = append(acts, act(dof.SecIdxNone, dof.ActExit, 3)...)
	acts = append(acts, act(dof.SecIdxNone, dof.ActPrintf, 7)...)
	acts = append(acts, act(4, dof.ActSystem, 0)...)
	acts = append(acts, act(0, dof.AggCount, 1)...)
	b.Add(dof.SectActDesc, 32, acts)
	return b.Bytes()
}

func TestECBDesc(t *testing.T) {
	for _, b := range []*doftest.Builder{doftest.New(), doftest.NewMSB()} {
		c := openImage(t, ecbImage(b), dof.DefaultOptions())

		sec, err := c.GetSection(1)
		require.NoError(t, err)
		e := sec.(*ECBDesc)
		assert.Equal(t, dof.SecIdx(2), e.ProbesIdx)
		assert.Equal(t, "NONE", e.PredIdx.String())
		assert.Nil(t, e.Pred)
		assert.Equal(t, uint64(42), e.UArg)

		require.NotNil(t, e.Probe)
		assert.Equal(t, "syscall", e.Probe.Provider)
		assert.Equal(t, "", e.Probe.Module)
		assert.Equal(t, "open", e.Probe.Func)
		assert.Equal(t, "entry", e.Probe.Name)
		assert.Equal(t, uint32(7), e.Probe.ID)

		acts, err := c.GetSection(5)
		require.NoError(t, err)
		assert.Same(t, acts, e.Actions)
	}
}

func TestActDescStringGate(t *testing.T) {
	c := openImage(t, ecbImage(doftest.New()), dof.DefaultOptions())
	sec, err := c.GetSection(5)
	require.NoError(t, err)
	a := sec.(*ActDesc).Actions
	require.Len(t, a, 5)

	assert.True(t, a[0].HasString)
	assert.Equal(t, "hello %d\n", a[0].ArgString)

	assert.Equal(t, dof.ActExit, a[1].Kind)
	assert.False(t, a[1].HasString)
	assert.Equal(t, uint64(3), a[1].Arg)

	assert.False(t, a[2].HasString, "printf without a string table keeps the raw value")
	assert.Equal(t, uint64(7), a[2].Arg)

	assert.False(t, a[3].HasString)
	assert.True(t, errors.Is(a[3].Err, dof.ErrUnresolvedSectionReference))

	assert.False(t, a[4].HasString, "aggregations never take a string")
	assert.NoError(t, a[4].Err)

	require.Len(t, c.Diagnostics(), 1)
	assert.Equal(t, dof.DiagUnresolved, c.Diagnostics()[0].Kind)
	assert.Equal(t, 5, c.Diagnostics()[0].Section)
}

func TestECBWrongProbeType(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectStrTab, 0, []byte{0})
	b.Add(dof.SectECBDesc, 0, b.Record(dof.SecIdx(0), dof.SecIdxNone, dof.SecIdxNone, doftest.Pad(4), uint64(0)))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())
	_, err := c.GetSection(1)
	assert.True(t, errors.Is(err, dof.ErrUnresolvedSectionReference))
}

func TestLinkCount(t *testing.T) {
	assert.Equal(t, uint64(1), LinkCount(16, 16, 4))
	assert.Equal(t, uint64(2), LinkCount(20, 16, 4))
	assert.Equal(t, uint64(3), LinkCount(24, 16, 4))
	assert.Equal(t, uint64(1), LinkCount(12, 12, 4))
	assert.Equal(t, uint64(0), LinkCount(8, 16, 4))
	assert.Equal(t, uint64(0), LinkCount(16, 16, 0))
}

// tableSections adds DIF, STRTAB, INTTAB and VARTAB sections at 0..3.
func tableSections(b *doftest.Builder) {
	b.Add(dof.SectDif, 4, b.Code(0x23000001))
	b.Add(dof.SectStrTab, 0, []byte("\x00x\x00"))
	b.Add(dof.SectIntTab, 8, b.Record(uint64(0x10)))
	b.Add(dof.SectVarTab, 20, b.Record(uint32(1), uint32(5), uint8(1), uint8(0), uint16(0), doftest.Pad(8)))
}

func TestDifoHdr(t *testing.T) {
	b := doftest.New()
	tableSections(b)
	b.Add(dof.SectDifoHdr, 4, b.Record(uint8(1), uint8(0), uint8(0), uint8(0), uint32(8),
		dof.SecIdx(0), dof.SecIdx(1), dof.SecIdx(2), dof.SecIdx(3)))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(4)
	require.NoError(t, err)
	d := sec.(*DifoHdr)
	assert.Equal(t, DifType{Kind: 1, Size: 8}, d.RType)
	assert.Equal(t, []dof.SecIdx{0, 1, 2, 3}, d.Links)
	assert.Equal(t, dof.SecIdx(0), d.CodeIdx)
	assert.Equal(t, dof.SecIdx(3), d.VarTabIdx)
	require.NotNil(t, d.Code)
	assert.Equal(t, 1, d.Code.Len())
	assert.NotNil(t, d.StrTab)
	assert.NotNil(t, d.IntTab)
	assert.NotNil(t, d.VarTab)
}

func TestDifoHdrAbsentTables(t *testing.T) {
	b := doftest.New()
	tableSections(b)
	b.Add(dof.SectDifoHdr, 4, b.Record(uint8(1), uint8(0), uint8(0), uint8(0), uint32(8), dof.SecIdx(0), dof.SecIdx(1)))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(4)
	require.NoError(t, err)
	d := sec.(*DifoHdr)
	assert.Len(t, d.Links, 2)
	assert.Equal(t, dof.SecIdxNone, d.IntTabIdx)
	assert.Equal(t, dof.SecIdxNone, d.VarTabIdx)
	assert.Nil(t, d.VarTab)
}

func TestDifoHdrUnresolvedLink(t *testing.T) {
	b := doftest.New()
	tableSections(b)
	b.Add(dof.SectDifoHdr, 4, b.Record(uint8(1), uint8(0), uint8(0), uint8(0), uint32(8), dof.SecIdx(0), dof.SecIdx(9)))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())
	_, err := c.GetSection(4)
	assert.True(t, errors.Is(err, dof.ErrUnresolvedSectionReference))
}

func TestDifoHdrLayoutLinkCount(t *testing.T) {
	opt := dof.DefaultOptions()
	opt.Layout = dof.Layout{DifoHeaderSize: 16, SecIdxSize: 4, VarSize: 20}
	for _, tt := range []struct {
		size  int
		links int
	}{
		{16, 1},
		{20, 2},
		{24, 3},
	} {
		b := doftest.New()
		tableSections(b)
		rec := b.Record(uint8(1), uint8(0), uint8(0), uint8(0), uint32(8), doftest.Pad(4),
			dof.SecIdx(0), dof.SecIdx(1), dof.SecIdx(2))
		b.Add(dof.SectDifoHdr, 4, rec[:tt.size])
		c := openImage(t, b.Bytes(), opt)

		sec, err := c.GetSection(4)
		require.NoError(t, err, "size %d", tt.size)
		d := sec.(*DifoHdr)
		assert.Len(t, d.Links, tt.links, "size %d", tt.size)
		assert.Equal(t, dof.SecIdx(0), d.Links[0], "first link sits inside the fixed header")
		assert.NotNil(t, d.Code)
	}
}

func TestDifoHdrWideIndex(t *testing.T) {
	opt := dof.DefaultOptions()
	opt.Layout = dof.Layout{DifoHeaderSize: 16, SecIdxSize: 8, VarSize: 20}
	b := doftest.New()
	tableSections(b)
	b.Add(dof.SectDifoHdr, 8, b.Record(uint8(1), uint8(0), uint8(0), uint8(0), uint32(8), uint64(0), uint64(2)))
	c := openImage(t, b.Bytes(), opt)

	sec, err := c.GetSection(4)
	require.NoError(t, err)
	d := sec.(*DifoHdr)
	assert.Equal(t, []dof.SecIdx{0, 2}, d.Links)
	assert.NotNil(t, d.IntTab)
}

func TestOptDesc(t *testing.T) {
	b := doftest.New()
	strs, offs := doftest.StrTab("on")
	b.Add(dof.SectStrTab, 0, strs)
	var opts []byte
	opts = append(opts, b.Record(uint32(3), dof.SecIdx(0), uint64(offs[0]))...)
	opts = append(opts, b.Record(uint32(4), dof.SecIdxNone, uint64(99))...)
	b.Add(dof.SectOptDesc, 16, opts)
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(1)
	require.NoError(t, err)
	o := sec.(*OptDesc).Options
	require.Len(t, o, 2)
	assert.True(t, o[0].HasString)
	assert.Equal(t, "on", o[0].ValueString)
	assert.False(t, o[1].HasString)
	assert.Equal(t, uint64(99), o[1].Value)
}

func TestRelHdr(t *testing.T) {
	b := doftest.New()
	strs, offs := doftest.StrTab("sym")
	b.Add(dof.SectStrTab, 0, strs)
	var rels []byte
	rels = append(rels, b.Record(offs[0], uint32(dof.RelocSetX), uint64(16), uint64(0))...)
	rels = append(rels, b.Record(uint32(999), uint32(dof.RelocDofRel), uint64(24), uint64(1))...)
	b.Add(dof.SectRelTab, 24, rels)
	b.Add(dof.SectURelHdr, 0, b.Record(dof.SecIdx(0), dof.SecIdx(1), dof.SecIdx(7)))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())

	sec, err := c.GetSection(2)
	require.NoError(t, err)
	rh := sec.(*RelHdr)
	assert.Equal(t, dof.SecIdx(7), rh.TgtSecIdx)
	require.Len(t, rh.Relocs, 2)
	assert.Equal(t, []string{"sym", ""}, rh.Names)
	assert.Equal(t, uint64(16), rh.Relocs[0].Offset)
	require.Len(t, c.Diagnostics(), 1)
	assert.Equal(t, dof.DiagOutOfRange, c.Diagnostics()[0].Kind)
}

func TestTextSection(t *testing.T) {
	b := doftest.New()
	b.Add(dof.SectSource, 0, []byte("BEGIN { exit(0); }\x00junk"))
	c := openImage(t, b.Bytes(), dof.DefaultOptions())
	sec, err := c.GetSection(0)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN { exit(0); }", sec.(*Text).Text)
}
