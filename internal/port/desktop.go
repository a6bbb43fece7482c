package port

import "context"

// MissingEngineAction is the user's answer when the engine is not installed
type MissingEngineAction string

// Missing engine actions
const (
	ActionOpenPage MissingEngineAction = "open_page"
	ActionDownload MissingEngineAction = "download"
	ActionCancel   MissingEngineAction = "cancel"
)

// Desktop performs host shell actions
type Desktop interface {
	// OpenURL opens url in the default browser
	OpenURL(ctx context.Context, url string) error

	// RevealFile shows path in the platform file manager
	RevealFile(ctx context.Context, path string) error
}

// Prompter asks the user questions on behalf of the orchestrator
type Prompter interface {
	// ChooseMissingEngineAction asks what to do about a missing engine
	ChooseMissingEngineAction(ctx context.Context) (MissingEngineAction, error)

	// ConfirmReveal asks whether to show the downloaded installer
	ConfirmReveal(ctx context.Context, path string) (bool, error)

	// NotifyError tells the user a download failed
	NotifyError(ctx context.Context, err error)
}
