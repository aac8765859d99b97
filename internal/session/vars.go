package session

import "fmt"

// DeclareInt declares an integer variable. Declaring a name twice is a
// no-op. Declarations are only possible before the session first starts.
func (s *Session) DeclareInt(name string) error {
	if _, ok := s.intIndex[name]; ok {
		return nil
	}
	if s.sealed {
		return fmt.Errorf("declare int %q: %w", name, ErrSealed)
	}
	s.intIndex[name] = len(s.intVars)
	s.intVars = append(s.intVars, intVar{})
	return nil
}

// DeclareObject declares an object variable.
func (s *Session) DeclareObject(name string) error {
	if _, ok := s.objectIndex[name]; ok {
		return nil
	}
	if s.sealed {
		return fmt.Errorf("declare object %q: %w", name, ErrSealed)
	}
	s.objectIndex[name] = len(s.objectVars)
	s.objectVars = append(s.objectVars, objectVar{})
	return nil
}

func (s *Session) intSlot(name string) (*intVar, error) {
	i, ok := s.intIndex[name]
	if !ok {
		return nil, fmt.Errorf("int %q: %w", name, ErrVariableUndeclared)
	}
	return &s.intVars[i], nil
}

func (s *Session) objectSlot(name string) (*objectVar, error) {
	i, ok := s.objectIndex[name]
	if !ok {
		return nil, fmt.Errorf("object %q: %w", name, ErrVariableUndeclared)
	}
	return &s.objectVars[i], nil
}

// GetInt returns the value of an integer variable.
func (s *Session) GetInt(name string) (int, error) {
	v, err := s.intSlot(name)
	if err != nil {
		return 0, err
	}
	if !v.set {
		return 0, fmt.Errorf("int %q: %w", name, ErrVariableNotSet)
	}
	return v.value, nil
}

// SetInt sets an integer variable.
func (s *Session) SetInt(name string, value int) error {
	v, err := s.intSlot(name)
	if err != nil {
		return err
	}
	v.set = true
	v.value = value
	return nil
}

// AddToInt adds delta to a set integer variable and returns the new value.
func (s *Session) AddToInt(name string, delta int) (int, error) {
	v, err := s.intSlot(name)
	if err != nil {
		return 0, err
	}
	if !v.set {
		return 0, fmt.Errorf("int %q: %w", name, ErrVariableNotSet)
	}
	v.value += delta
	return v.value, nil
}

// GetObject returns the value of an object variable.
func (s *Session) GetObject(name string) (any, error) {
	v, err := s.objectSlot(name)
	if err != nil {
		return nil, err
	}
	if !v.set {
		return nil, fmt.Errorf("object %q: %w", name, ErrVariableNotSet)
	}
	return v.value, nil
}

// SetObject sets an object variable.
func (s *Session) SetObject(name string, value any) error {
	v, err := s.objectSlot(name)
	if err != nil {
		return err
	}
	v.set = true
	v.value = value
	return nil
}

// IsSet reports whether the named int or object variable has a value.
func (s *Session) IsSet(name string) bool {
	if i, ok := s.intIndex[name]; ok {
		return s.intVars[i].set
	}
	if i, ok := s.objectIndex[name]; ok {
		return s.objectVars[i].set
	}
	return false
}

// IsDeclared reports whether name is a declared int or object variable.
func (s *Session) IsDeclared(name string) bool {
	_, isInt := s.intIndex[name]
	_, isObject := s.objectIndex[name]
	return isInt || isObject
}

// Unset clears the named variable.
func (s *Session) Unset(name string) {
	if i, ok := s.intIndex[name]; ok {
		s.intVars[i] = intVar{}
	}
	if i, ok := s.objectIndex[name]; ok {
		s.objectVars[i] = objectVar{}
	}
}

// DeclareResource registers a per-session resource under key. Resources
// implementing Resetter are reset whenever the session restarts.
func (s *Session) DeclareResource(key string, resource any) error {
	if _, ok := s.resources[key]; ok {
		return nil
	}
	if s.sealed {
		return fmt.Errorf("declare resource %q: %w", key, ErrSealed)
	}
	s.resources[key] = resource
	if r, ok := resource.(Resetter); ok {
		s.resetters = append(s.resetters, r)
	}
	return nil
}

// Resource returns the resource registered under key, or nil.
func (s *Session) Resource(key string) any {
	return s.resources[key]
}
