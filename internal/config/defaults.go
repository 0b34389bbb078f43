package config

const (
	defaultDataDir         = "~/.local/share/reelvault"
	defaultOutputDir       = "~/.local/share/reelvault/converted"
	defaultLogDir          = "~/.local/share/reelvault/logs"
	defaultAPIBind         = "127.0.0.1:7823"
	defaultHWDevice        = "/dev/dri/renderD128"
	defaultMaxConcurrent   = 2
	defaultProbeTimeout    = 30
	defaultMinSourceHeight = 480
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultNtfyTimeout     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Transcode: Transcode{
			HWDevice:        defaultHWDevice,
			MaxConcurrent:   defaultMaxConcurrent,
			ProbeTimeout:    defaultProbeTimeout,
			MinSourceHeight: defaultMinSourceHeight,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
