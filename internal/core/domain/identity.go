package domain

import "fmt"

// ResourceIdentity is the fully qualified address of a remote resource.
// It is the diff and lookup key and is never mutated after construction.
type ResourceIdentity struct {
	Account string       // provider account scope
	Group   string       // logical group or placement (e.g. region/zone)
	Kind    ResourceKind // resource kind
	Name    string       // resource name within the group
}

func (id ResourceIdentity) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", id.Account, id.Group, id.Kind, id.Name)
}

func (id ResourceIdentity) Validate() error {
	if id.Kind == "" {
		return fmt.Errorf("resource identity missing kind")
	}
	if id.Name == "" {
		return fmt.Errorf("resource identity missing name")
	}
	return nil
}
