package models

// Actor is a person known to the assembly referential.
type Actor struct {
	ID   string `json:"uid"`
	Name string `json:"name"`
}

// Organ is a body (political group, committee...) of the assembly referential.
type Organ struct {
	ID      string `json:"uid"`
	Name    string `json:"name"`
	Acronym string `json:"acronym"`
}

// Person is the minimal people-index entry folded from vote records.
type Person struct {
	PersonID     string `json:"person_id"`
	Name         string `json:"name"`
	Chamber      string `json:"chamber"`
	Group        string `json:"group,omitempty"`
	Constituency string `json:"constituency,omitempty"`
}

// Referential indexes actors and organs by uid.
type Referential struct {
	Actors map[string]Actor `json:"actors"`
	Organs map[string]Organ `json:"organs"`
}

// NewReferential returns an empty referential.
func NewReferential() *Referential {
	return &Referential{
		Actors: make(map[string]Actor),
		Organs: make(map[string]Organ),
	}
}

// ActorName returns the actor's display name, or UnknownName.
func (r *Referential) ActorName(id string) string {
	if r != nil {
		if a, ok := r.Actors[id]; ok && a.Name != "" {
			return a.Name
		}
	}
	return UnknownName
}

// Organ looks up an organ by uid.
func (r *Referential) Organ(id string) (Organ, bool) {
	if r == nil {
		return Organ{}, false
	}
	o, ok := r.Organs[id]
	return o, ok
}
