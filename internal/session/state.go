package session

import "mohaweel/internal/domain"

// Mode is the single display mode derived from a State.
type Mode string

const (
	ModeIdle    Mode = "idle"
	ModePreview Mode = "preview"
	ModeLoading Mode = "loading"
	ModeError   Mode = "error"
	ModeResult  Mode = "result"
)

// Phase is the variant part of a session: exactly one of Ready, Loading,
// Failed or Completed.
type Phase interface {
	phase()
}

// Ready means nothing is in flight and there is no outcome to show.
type Ready struct{}

// Loading means a generation stamped with Token is in flight.
type Loading struct {
	Token uint64
}

// Failed holds the error of the last attempt.
type Failed struct {
	Err *domain.Error
}

// Completed holds the result of the last successful generation.
type Completed struct {
	Result domain.TransformationResult
}

func (Ready) phase()     {}
func (Loading) phase()   {}
func (Failed) phase()    {}
func (Completed) phase() {}

// State is what the presentation layer renders.
type State struct {
	Image  *domain.EncodedImage
	Prompt string
	Phase  Phase
}

// Mode reports which of the display modes the state is in.
func (s State) Mode() Mode {
	switch s.Phase.(type) {
	case Loading:
		return ModeLoading
	case Failed:
		return ModeError
	case Completed:
		return ModeResult
	}
	if s.Image != nil {
		return ModePreview
	}
	return ModeIdle
}

// Result returns the completed result, if any.
func (s State) Result() (domain.TransformationResult, bool) {
	c, ok := s.Phase.(Completed)
	return c.Result, ok
}

// Err returns the failure of the last attempt, if any.
func (s State) Err() *domain.Error {
	if f, ok := s.Phase.(Failed); ok {
		return f.Err
	}
	return nil
}

// IsLoading reports whether a generation is in flight.
func (s State) IsLoading() bool {
	_, ok := s.Phase.(Loading)
	return ok
}
