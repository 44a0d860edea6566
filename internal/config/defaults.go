package config

const (
	defaultCorpusDir        = "~/hauptstimme/corpus"
	defaultDataDir          = "~/.local/share/hauptstimme"
	defaultLogDir           = "~/.local/share/hauptstimme/logs"
	defaultLogRetentionDays = 60
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"

	defaultAnnotationSource = "lyrics"

	defaultSampleRate  = 22050
	defaultFeatureRate = 50
	defaultLeadIn      = 1.0
	defaultBandRadius  = 3000

	defaultSegResolution = 1.0
	defaultSegTolerance  = 2

	defaultWorkers      = 4
	defaultStuckTimeout = 30

	defaultRawBaseURL = "https://raw.githubusercontent.com/MarkGotham/Hauptstimme/main"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CorpusDir: defaultCorpusDir,
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
		},
		Annotations: Annotations{
			Source:           defaultAnnotationSource,
			InstrumentLabels: true,
			Dynamics:         true,
		},
		Alignment: Alignment{
			SampleRate:  defaultSampleRate,
			FeatureRate: defaultFeatureRate,
			LeadIn:      defaultLeadIn,
			BandRadius:  defaultBandRadius,
		},
		Segmentation: Segmentation{
			Resolution: defaultSegResolution,
			Tolerance:  defaultSegTolerance,
		},
		Metadata: Metadata{
			RawBaseURL: defaultRawBaseURL,
		},
		Workflow: Workflow{
			Workers:      defaultWorkers,
			StuckTimeout: defaultStuckTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
