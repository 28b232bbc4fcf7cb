package config

const (
	defaultAppDir             = "~/.local/share/loom"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultJournalMode        = "WAL"
	defaultSynchronous        = "NORMAL"
	defaultSourceLanguage     = "en-US"
	defaultTargetLanguage     = "it-IT"
	defaultExtractorCommand   = "openxliff-convert"
	defaultConverterCommand   = "jliff-convert"
	defaultToolTimeoutSeconds = 300
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			AppDir: defaultAppDir,
		},
		Database: Database{
			JournalMode: defaultJournalMode,
			Synchronous: defaultSynchronous,
		},
		Languages: Languages{
			DefaultSource: defaultSourceLanguage,
			DefaultTarget: defaultTargetLanguage,
		},
		Tools: Tools{
			Extractor:      defaultExtractorCommand,
			Converter:      defaultConverterCommand,
			TimeoutSeconds: defaultToolTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
