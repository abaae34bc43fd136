package flows

// Deps groups flow dependency sets. The root Manager builds this once and
// delegates to the matching flow.
type Deps struct {
	Login   LoginDeps
	Refresh RefreshDeps
	Logout  LogoutDeps
}
