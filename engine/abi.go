package engine

import "github.com/tetratelabs/wazero/api"

// Entry points an engine module exports. All take and return i32.
const (
	ExportMemory = "memory"
	ExportAlloc  = "hvr_alloc"

	ExportIsInitialised         = "interface_is_initialised"
	ExportInitialise            = "interface_initialise"
	ExportSetLogLevel           = "interface_set_log_level"
	ExportSetLogCallback        = "interface_set_log_callback"
	ExportUpdate                = "interface_update"
	ExportReconnect             = "interface_reconnect"
	ExportGetInfo               = "interface_get_info"
	ExportRenderMethodTypeCount = "interface_get_render_method_type_count"
	ExportRenderMethodType      = "interface_get_render_method_type"
	ExportRenderMethodDefault   = "interface_get_render_method_default"

	// Optional.
	ExportMemoryStats  = "interface_get_memory_stats"
	ExportNetworkStats = "interface_get_network_stats"
)

// Host module the engine imports its log sink from.
const (
	HostModule  = "hvr_host"
	HostFuncLog = "log"
)

// keyCapacity bounds info keys copied into engine memory, NUL included.
const keyCapacity = 256

var requiredExports = []string{
	ExportAlloc,
	ExportIsInitialised,
	ExportInitialise,
	ExportSetLogLevel,
	ExportSetLogCallback,
	ExportUpdate,
	ExportReconnect,
	ExportGetInfo,
	ExportRenderMethodTypeCount,
	ExportRenderMethodType,
	ExportRenderMethodDefault,
}

var optionalExports = []string{
	ExportMemoryStats,
	ExportNetworkStats,
}

var i32 = api.ValueTypeI32

// LogParams is the signature of the hvr_host.log import: level, ptr, len.
var LogParams = []api.ValueType{i32, i32, i32}
