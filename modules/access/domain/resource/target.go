package resource

// Target is the tagged scope variant of a completed selection. Exactly one
// concrete type applies per request, so scope-specific fields can never be
// populated together.
type Target interface {
	System() System
	// Approver returns the resolved primary approver id, empty when the
	// scope has no inherent approver.
	Approver() string
}

// ProjectTarget scopes a request to a project; the project owner is the
// primary approver.
type ProjectTarget struct {
	Sys       System
	ProjectID string
	OwnerID   string
}

func (t ProjectTarget) System() System   { return t.Sys }
func (t ProjectTarget) Approver() string { return t.OwnerID }

// AccountTarget scopes a request to a specific person's account; that
// person is the primary approver.
type AccountTarget struct {
	Sys            System
	AccountOwnerID string
}

func (t AccountTarget) System() System   { return t.Sys }
func (t AccountTarget) Approver() string { return t.AccountOwnerID }

// GlobalTarget scopes a request to a system as a whole.
type GlobalTarget struct {
	Sys System
}

func (t GlobalTarget) System() System   { return t.Sys }
func (t GlobalTarget) Approver() string { return "" }
