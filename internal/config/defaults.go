package config

const (
	defaultConfigPath         = "~/.config/nemoship/config.toml"
	defaultArtifactsDir       = "~/.local/share/nemoship/artifacts"
	defaultStateDir           = "~/.local/share/nemoship/state"
	defaultLogDir             = "~/.local/share/nemoship/logs"
	defaultModelID            = "nvidia/parakeet-rnnt-0.6b"
	defaultCanonicalName      = "model.nemo"
	defaultArchiveName        = "model.tar.gz"
	defaultHubURL             = "https://huggingface.co"
	defaultHubRevision        = "main"
	defaultHubTimeoutSeconds  = 3600
	defaultRoleName           = "SageMakerExecutionRole-Parakeet"
	defaultS3Prefix           = "nemo-parakeet"
	defaultEndpointName       = "nemo-parakeet-demo"
	defaultInstanceType       = "ml.g5.xlarge"
	defaultInstanceCount      = 1
	defaultVariantName        = "AllTraffic"
	defaultWaitTimeoutMinutes = 30
	defaultServeBind          = "0.0.0.0:8080"
	defaultModelDir           = "/opt/ml/model"
	defaultSampleRate         = 16000
	defaultChannels           = 1
	defaultContentType        = "application/json"
	defaultAudioField         = "audio_b64"
	defaultTextField          = "text"
	defaultMaxRequestBytes    = 32 << 20
	defaultPython             = "python3"
	defaultDevice             = "auto"
	defaultStartupSeconds     = 600
	defaultNtfyTimeoutSeconds = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults. Paths that
// derive from other settings (checkpoint and archive locations, the model
// directory) stay empty until normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			ArtifactsDir: defaultArtifactsDir,
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
		},
		Model: Model{
			ID:            defaultModelID,
			CanonicalName: defaultCanonicalName,
		},
		Checkpoint: Checkpoint{
			HubURL:         defaultHubURL,
			Revision:       defaultHubRevision,
			TimeoutSeconds: defaultHubTimeoutSeconds,
		},
		AWS: AWS{
			RoleName: defaultRoleName,
			Prefix:   defaultS3Prefix,
		},
		Deploy: Deploy{
			EndpointName:       defaultEndpointName,
			InstanceType:       defaultInstanceType,
			InstanceCount:      defaultInstanceCount,
			VariantName:        defaultVariantName,
			Wait:               true,
			WaitTimeoutMinutes: defaultWaitTimeoutMinutes,
		},
		Serve: Serve{
			Bind:            defaultServeBind,
			SampleRate:      defaultSampleRate,
			Channels:        defaultChannels,
			ContentType:     defaultContentType,
			AudioField:      defaultAudioField,
			TextField:       defaultTextField,
			MaxRequestBytes: defaultMaxRequestBytes,
			Python:          defaultPython,
			Device:          defaultDevice,
			StartupSeconds:  defaultStartupSeconds,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
