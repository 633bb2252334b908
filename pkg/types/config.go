package types

// Config holds device identity and directory locations for the sync core.
type Config struct {
	DataDir    string `json:"data_dir" yaml:"data_dir"`       // Local store and fallback snapshot.
	RemoteDir  string `json:"remote_dir" yaml:"remote_dir"`   // Mounted drive folder; empty means no remote configured.
	ClientID   string `json:"client_id" yaml:"client_id"`     // Stable per-device identity (UUID).
	DeviceName string `json:"device_name" yaml:"device_name"` // Human-readable label shown to other devices.
	Passphrase string `json:"-" yaml:"passphrase"`            // Key material for the snapshot cipher.
}

// Validate checks that the Config is well-formed. RemoteDir may be empty:
// a device without a configured remote operates in local-fallback mode.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	if c.ClientID == "" {
		return ErrClientIDEmpty
	}
	if c.DeviceName == "" {
		return ErrDeviceNameEmpty
	}
	return nil
}

// Remote reports whether a remote drive folder is configured.
func (c Config) Remote() bool {
	return c.RemoteDir != ""
}
