package guard

// Props is the contract between a guard and the screen it admits. Only the
// matched route parameters and the resume state are forwarded.
type Props struct {
	Params map[string]string `json:"params,omitempty"`
	From   *Location         `json:"from,omitempty"`
}

// ResumeState travels with a redirect so the login screen can return the
// browser to where it was going. Only a login on LoginPath may resume it.
type ResumeState struct {
	LoginPath string   `json:"login_path"`
	From      Location `json:"from"`
}

// Decision is either Allow or Deny.
type Decision interface {
	Allowed() bool
}

type Allow struct {
	Target Target
	Props  Props
}

type Deny struct {
	RedirectTo string
	Resume     ResumeState
}

func (Allow) Allowed() bool { return true }
func (Deny) Allowed() bool  { return false }
