package descriptor

import "fmt"

// DuplicateNameError is returned when a descriptor name is registered twice.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate component name %q", e.Name)
}

func (e *DuplicateNameError) Kind() string { return "DuplicateNameError" }

// NotFoundError is returned when a lookup names an unregistered component.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("component %q not found", e.Name)
}

func (e *NotFoundError) Kind() string { return "NotFoundError" }

// InvalidDescriptorError is returned when a descriptor is malformed.
type InvalidDescriptorError struct {
	Name   string
	Reason string
}

func (e *InvalidDescriptorError) Error() string {
	if e.Name == "" {
		return "invalid descriptor: " + e.Reason
	}
	return fmt.Sprintf("invalid descriptor %q: %s", e.Name, e.Reason)
}

func (e *InvalidDescriptorError) Kind() string { return "InvalidDescriptorError" }
