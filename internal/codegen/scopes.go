package codegen

// Scopes is a stack of variable scopes. The outermost scope is never popped.
type Scopes struct {
	frames []map[string]struct{}
}

// NewScopes returns a stack holding one empty scope.
func NewScopes() *Scopes {
	return &Scopes{frames: []map[string]struct{}{{}}}
}

// Push opens a nested scope.
func (s *Scopes) Push() {
	s.frames = append(s.frames, map[string]struct{}{})
}

// Pop closes the innermost scope.
func (s *Scopes) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Declared reports whether name is declared in any open scope.
func (s *Scopes) Declared(name string) bool {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i][name]; ok {
			return true
		}
	}
	return false
}

// Declare records name in the innermost scope.
func (s *Scopes) Declare(name string) {
	s.frames[len(s.frames)-1][name] = struct{}{}
}

// Depth returns the number of open scopes.
func (s *Scopes) Depth() int {
	return len(s.frames)
}
