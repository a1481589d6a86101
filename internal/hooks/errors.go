package hooks

import "errors"

var (
	// ErrManifestMalformed means manifest.json could not be decoded as JSON
	// matching the expected shape (unknown fields, trailing data, wrong
	// types).
	ErrManifestMalformed = errors.New("hooks: malformed manifest")

	// ErrManifestInvalid means the manifest decoded fine but fails semantic
	// validation (missing fields, unsupported hook name).
	ErrManifestInvalid = errors.New("hooks: invalid manifest")

	// ErrDuplicatePluginID means two discovered manifests declare the same
	// plugin_id.
	ErrDuplicatePluginID = errors.New("hooks: duplicate plugin id")

	// ErrUnregisteredObserver means a manifest declares a plugin_id with no
	// matching registered Observer.
	ErrUnregisteredObserver = errors.New("hooks: no observer registered for plugin")
)
