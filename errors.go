package human360

import "fmt"

// AnalysisError is returned by AnalyzePortrait for every failure, whether
// the image couldn't be prepared or the model call failed.
type AnalysisError struct {
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %v", e.Cause)
}

func (e *AnalysisError) Unwrap() error { return e.Cause }

// Reasons lists the likely causes shown to the user alongside the error.
func (e *AnalysisError) Reasons() []string {
	return []string{
		"Low image quality",
		"No clear face detected",
		"Unsupported image format",
	}
}
