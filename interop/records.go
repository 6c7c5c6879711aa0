package interop

// Handle is an opaque native address (command queue, encoder, string).
// The zero handle is null.
type Handle uint64

// IsNull reports whether h refers to nothing.
func (h Handle) IsNull() bool {
	return h == 0
}

// Thread-pool size hints for InitialisationInfo.
const (
	ThreadPoolDefault int32 = -1 // engine picks its own pool size
	ThreadPoolNone    int32 = 0  // no worker threads
)

type Vec2 struct {
	X, Y float32
}

// Vec3 compares by value over its three components.
type Vec3 struct {
	X, Y, Z float32
}

// Equal reports component-wise equality. NaN components never compare equal.
func (v Vec3) Equal(o Vec3) bool {
	return v.X == o.X && v.Y == o.Y && v.Z == o.Z
}

type Vec4 struct {
	X, Y, Z, W float32
}

// Mat33 holds 9 floats in the order the engine uses; the element order is the
// engine's contract, only the length is fixed here.
type Mat33 struct {
	M [9]float32
}

// Mat44 holds 16 floats in engine order.
type Mat44 struct {
	M [16]float32
}

// Bounds is an axis-aligned box given by its center and half extents.
type Bounds struct {
	Center   Vec3
	HalfDims Vec3
}

// MemoryStats are the engine's allocator counters since initialisation.
type MemoryStats struct {
	AllocBytes  uint64
	AllocBlocks uint64
	FreeBytes   uint64
	FreeBlocks  uint64
	UsedBytes   int64
	UsedBlocks  int64
}

// Underflow reports negative usage counters, which only happen when the
// engine frees more than it allocated.
func (s MemoryStats) Underflow() bool {
	return s.UsedBytes < 0 || s.UsedBlocks < 0
}

type NetworkStats struct {
	ReceivedBits  int64
	SentBits      int64
	BitsPerSecond int64
}

// StatsData is a generic running statistic.
type StatsData struct {
	Current float32
	Total   float32
	Maximum float32
	Minimum float32
	Avg     float32
	Count   uint32
}

// AdaptationSet references two engine-owned NUL-terminated strings.
type AdaptationSet struct {
	MimeType Handle
	Codec    Handle
}

// Representation describes one quality level of a stream.
type Representation struct {
	MaxFPS        float32
	Bandwidth     uint32
	MaxVoxelCount uint32
}

// FrameContext is handed to the engine once per rendered frame.
type FrameContext struct {
	StructSize     uint32
	PixelFormat    uint32
	CommandQueue   Handle
	CommandEncoder Handle
}

// NewFrameContext returns a FrameContext with its size tag computed for abi.
func NewFrameContext(abi ABI, pixelFormat uint32, queue, encoder Handle) FrameContext {
	fc := FrameContext{
		PixelFormat:    pixelFormat,
		CommandQueue:   queue,
		CommandEncoder: encoder,
	}
	fc.StructSize = SizeOf(abi, &fc)
	return fc
}

// InitialisationInfo configures the engine. It is built fresh for each
// initialise call. Empty strings are passed as null pointers.
type InitialisationInfo struct {
	AppID          string
	AppVersion     string
	APIKey         string
	ExtensionPath  string
	CachePath      string
	StructSize     uint32
	ThreadPoolSize int32
}

// NewInitialisationInfo returns an InitialisationInfo with its size tag
// computed for abi and the default thread-pool hint.
func NewInitialisationInfo(abi ABI) InitialisationInfo {
	info := InitialisationInfo{ThreadPoolSize: ThreadPoolDefault}
	info.StructSize = SizeOf(abi, &info)
	return info
}

func (*Vec2) layoutName() string { return layoutVec2 }

func (v *Vec2) encode(e *encoder) {
	e.f32("x", v.X)
	e.f32("y", v.Y)
}

func (v *Vec2) decode(d *decoder) {
	v.X = d.f32("x")
	v.Y = d.f32("y")
}

func (*Vec3) layoutName() string { return layoutVec3 }

func (v *Vec3) encode(e *encoder) {
	e.f32("x", v.X)
	e.f32("y", v.Y)
	e.f32("z", v.Z)
}

func (v *Vec3) decode(d *decoder) {
	v.X = d.f32("x")
	v.Y = d.f32("y")
	v.Z = d.f32("z")
}

func (*Vec4) layoutName() string { return layoutVec4 }

func (v *Vec4) encode(e *encoder) {
	e.f32("x", v.X)
	e.f32("y", v.Y)
	e.f32("z", v.Z)
	e.f32("w", v.W)
}

func (v *Vec4) decode(d *decoder) {
	v.X = d.f32("x")
	v.Y = d.f32("y")
	v.Z = d.f32("z")
	v.W = d.f32("w")
}

func (*Mat33) layoutName() string { return layoutMat33 }

func (m *Mat33) encode(e *encoder) { e.floats("m", layoutF32x9, m.M[:]) }

func (m *Mat33) decode(d *decoder) { d.floats("m", layoutF32x9, m.M[:]) }

func (*Mat44) layoutName() string { return layoutMat44 }

func (m *Mat44) encode(e *encoder) { e.floats("m", layoutF32x16, m.M[:]) }

func (m *Mat44) decode(d *decoder) { d.floats("m", layoutF32x16, m.M[:]) }

func (*Bounds) layoutName() string { return layoutBounds }

func (b *Bounds) encode(e *encoder) {
	e.record("center", &b.Center)
	e.record("half-dims", &b.HalfDims)
}

func (b *Bounds) decode(d *decoder) {
	d.record("center", &b.Center)
	d.record("half-dims", &b.HalfDims)
}

func (*MemoryStats) layoutName() string { return layoutMemoryStats }

func (s *MemoryStats) encode(e *encoder) {
	e.u64("alloc-bytes", s.AllocBytes)
	e.u64("alloc-blocks", s.AllocBlocks)
	e.u64("free-bytes", s.FreeBytes)
	e.u64("free-blocks", s.FreeBlocks)
	e.s64("used-bytes", s.UsedBytes)
	e.s64("used-blocks", s.UsedBlocks)
}

func (s *MemoryStats) decode(d *decoder) {
	s.AllocBytes = d.u64("alloc-bytes")
	s.AllocBlocks = d.u64("alloc-blocks")
	s.FreeBytes = d.u64("free-bytes")
	s.FreeBlocks = d.u64("free-blocks")
	s.UsedBytes = d.s64("used-bytes")
	s.UsedBlocks = d.s64("used-blocks")
}

func (*NetworkStats) layoutName() string { return layoutNetworkStats }

func (s *NetworkStats) encode(e *encoder) {
	e.s64("received-bits", s.ReceivedBits)
	e.s64("sent-bits", s.SentBits)
	e.s64("bits-per-second", s.BitsPerSecond)
}

func (s *NetworkStats) decode(d *decoder) {
	s.ReceivedBits = d.s64("received-bits")
	s.SentBits = d.s64("sent-bits")
	s.BitsPerSecond = d.s64("bits-per-second")
}

func (*StatsData) layoutName() string { return layoutStatsData }

func (s *StatsData) encode(e *encoder) {
	e.f32("current", s.Current)
	e.f32("total", s.Total)
	e.f32("maximum", s.Maximum)
	e.f32("minimum", s.Minimum)
	e.f32("avg", s.Avg)
	e.u32("count", s.Count)
}

func (s *StatsData) decode(d *decoder) {
	s.Current = d.f32("current")
	s.Total = d.f32("total")
	s.Maximum = d.f32("maximum")
	s.Minimum = d.f32("minimum")
	s.Avg = d.f32("avg")
	s.Count = d.u32("count")
}

func (*AdaptationSet) layoutName() string { return layoutAdaptationSet }

func (a *AdaptationSet) encode(e *encoder) {
	e.ptr("mime-type", uint64(a.MimeType))
	e.ptr("codec", uint64(a.Codec))
}

func (a *AdaptationSet) decode(d *decoder) {
	a.MimeType = Handle(d.ptr("mime-type"))
	a.Codec = Handle(d.ptr("codec"))
}

func (*Representation) layoutName() string { return layoutRepresentation }

func (r *Representation) encode(e *encoder) {
	e.f32("max-fps", r.MaxFPS)
	e.u32("bandwidth", r.Bandwidth)
	e.u32("max-voxel-count", r.MaxVoxelCount)
}

func (r *Representation) decode(d *decoder) {
	r.MaxFPS = d.f32("max-fps")
	r.Bandwidth = d.u32("bandwidth")
	r.MaxVoxelCount = d.u32("max-voxel-count")
}

func (*FrameContext) layoutName() string { return layoutFrameContext }

func (f *FrameContext) encode(e *encoder) {
	e.u32("struct-size", f.StructSize)
	e.u32("pixel-format", f.PixelFormat)
	e.ptr("command-queue", uint64(f.CommandQueue))
	e.ptr("command-encoder", uint64(f.CommandEncoder))
}

func (f *FrameContext) decode(d *decoder) {
	f.StructSize = d.u32("struct-size")
	f.PixelFormat = d.u32("pixel-format")
	f.CommandQueue = Handle(d.ptr("command-queue"))
	f.CommandEncoder = Handle(d.ptr("command-encoder"))
}

func (*InitialisationInfo) layoutName() string { return layoutInitialisationInfo }

func (i *InitialisationInfo) encode(e *encoder) {
	e.u32("struct-size", i.StructSize)
	e.str("app-id", i.AppID)
	e.str("app-version", i.AppVersion)
	e.str("api-key", i.APIKey)
	e.str("extension-path", i.ExtensionPath)
	e.str("cache-path", i.CachePath)
	e.s32("thread-pool-size", i.ThreadPoolSize)
}

// decode restores the scalar fields only; string pointers are engine
// addresses and cannot be resolved without its memory.
func (i *InitialisationInfo) decode(d *decoder) {
	i.StructSize = d.u32("struct-size")
	i.ThreadPoolSize = d.s32("thread-pool-size")
}
