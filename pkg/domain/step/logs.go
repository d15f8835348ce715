package step

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kerr "github.com/platefab/platefab/pkg/domain/errors"
	"github.com/platefab/platefab/pkg/utils/natsort"
)

// LogOutput is the captured stdout and stderr of one job execution.
type LogOutput struct {
	StdOut string
	StdErr string
}

// GetLogOutputFromFiles reads the stdout and stderr of a job from the
// step's log directory.
//
// jobId selects a run job; nil selects the collect job. Schedulers
// append timestamps to the filenames they write, so on resubmission a
// job leaves several generations behind. Natural ordering puts the
// most recent generation last, and that is the one returned.
func (b *Base) GetLogOutputFromFiles(jobId *int) (LogOutput, error) {
	logLoc, err := b.LogLocation()
	if err != nil {
		return LogOutput{}, err
	}

	var outPattern, errPattern string
	if jobId != nil {
		outPattern = fmt.Sprintf("*_run*_%06d*.out", *jobId)
		errPattern = fmt.Sprintf("*_run*_%06d*.err", *jobId)
	} else {
		outPattern = "*_collect*.out"
		errPattern = "*_collect*.err"
	}

	stdout, err := readLatest(logLoc, outPattern)
	if err != nil {
		return LogOutput{}, err
	}
	stderr, err := readLatest(logLoc, errPattern)
	if err != nil {
		return LogOutput{}, err
	}
	return LogOutput{StdOut: stdout, StdErr: stderr}, nil
}

func readLatest(dir string, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", kerr.NotFound{
			Path: filepath.Join(dir, pattern),
			Hint: "no log file matches. has the job run yet?",
		}
	}
	latest := natsort.Sorted(matches)[len(matches)-1]
	content, err := os.ReadFile(latest)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// FailureReport describes one failed job in operator-facing terms.
type FailureReport struct {
	StepName     string
	SubmissionId int

	// JobId is nil for the collect job.
	JobId *int

	ExitCode int
	Logs     LogOutput
}

func (f FailureReport) String() string {
	job := "collect"
	if f.JobId != nil {
		job = fmt.Sprintf("run %d", *f.JobId)
	}
	sb := new(strings.Builder)
	fmt.Fprintf(
		sb, "step %q (submission %d) %s job failed with exit code %d",
		f.StepName, f.SubmissionId, job, f.ExitCode,
	)
	if f.Logs.StdErr != "" {
		fmt.Fprintf(sb, "\nstderr:\n%s", f.Logs.StdErr)
	}
	return sb.String()
}
