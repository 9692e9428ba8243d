package persist

// Preset capability interfaces. Components that can round-trip their
// configuration through the persistence store declare these explicitly;
// callers check the interface instead of probing for methods at runtime.

// SupportsPresetExport is implemented by components whose configuration
// can be exported as an opaque preset payload.
type SupportsPresetExport interface {
	// ExportPreset returns the component's configuration as bytes
	// suitable for Store.Save under ScopePreset.
	ExportPreset() ([]byte, error)
}

// SupportsPresetApply is implemented by components that can replace
// their configuration from a previously exported preset payload.
type SupportsPresetApply interface {
	// ApplyPreset replaces the component's configuration with the
	// payload's contents. Invalid payloads leave the component unchanged.
	ApplyPreset(data []byte) error
}
