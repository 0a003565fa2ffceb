package runs

import "context"

// QuPathBuilder assembles a QuPath project from a run's inputs and downloaded
// results. Project assembly is best effort: failures are reported through
// progress and logs but never fail the download that produced the files.
type QuPathBuilder interface {
	AddInput(ctx context.Context, projectDir string, sourcePaths []string) error
	AddResults(ctx context.Context, projectDir string, resultPaths []string) error
	AnnotateInputWithResults(ctx context.Context, projectDir string) error
}
