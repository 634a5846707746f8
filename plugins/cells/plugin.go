// ABOUTME: Cell plugin contract and lifecycle result codes.
// ABOUTME: Plugins bundle cell entries with optional install/uninstall hooks.

package cells

// Plugin bundles cell entries under a unique name. Install and Uninstall are
// optional lifecycle hooks; they run while the registry lock is held and must
// not call back into the registry.
type Plugin struct {
	Name      string
	Version   string
	Cells     []Entry
	Install   func() error
	Uninstall func() error
}

// InstallResult reports the visible outcome of InstallPlugin.
type InstallResult int

const (
	// InstallOK means the plugin's cells were registered and its hook ran.
	InstallOK InstallResult = iota
	// InstallDuplicate means a plugin with the same name was already
	// installed; the call was a no-op.
	InstallDuplicate
	// InstallFailed means the install hook returned an error and the
	// registry was rolled back to its prior state.
	InstallFailed
)

func (r InstallResult) String() string {
	switch r {
	case InstallOK:
		return "ok"
	case InstallDuplicate:
		return "duplicate"
	case InstallFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UninstallResult reports the visible outcome of UninstallPlugin.
type UninstallResult int

const (
	// UninstallOK means the plugin's cell types were removed.
	UninstallOK UninstallResult = iota
	// UninstallMissing means no plugin with that name was installed; the
	// call was a no-op.
	UninstallMissing
)

func (r UninstallResult) String() string {
	switch r {
	case UninstallOK:
		return "ok"
	case UninstallMissing:
		return "missing"
	default:
		return "unknown"
	}
}
