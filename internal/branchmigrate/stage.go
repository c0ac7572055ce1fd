package branchmigrate

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
)

// Stage identifies which step of the checkout reconciliation a process runs.
type Stage string

const (
	// StageUnset is the first stage, entered when no marker is present.
	StageUnset Stage = ""
	// StageTwo rolls back migrations recorded by stage one.
	StageTwo Stage = "TWO"
	// StageThree applies the migrations of the branch being entered.
	StageThree Stage = "THREE"
)

const (
	// StageEnvironmentVariable carries the stage marker between processes.
	StageEnvironmentVariable = "SCHEMAHOP_STAGE"

	unknownStageErrorTemplateConstant     = "unknown %s value %q"
	stageEnvironmentErrorTemplateConstant = "unable to read stage marker: %w"
	stageOneLabelConstant                 = "ONE"
)

// UnknownStageError reports a stage marker value that names no stage.
type UnknownStageError struct {
	Value string
}

// Error describes the unknown marker.
func (unknownStageError UnknownStageError) Error() string {
	return fmt.Sprintf(unknownStageErrorTemplateConstant, StageEnvironmentVariable, unknownStageError.Value)
}

// String renders the stage for logs.
func (stage Stage) String() string {
	if stage == StageUnset {
		return stageOneLabelConstant
	}
	return string(stage)
}

// Next returns the marker handed to the process started by this stage's checkout.
func (stage Stage) Next() (Stage, bool) {
	switch stage {
	case StageUnset:
		return StageTwo, true
	case StageTwo:
		return StageThree, true
	default:
		return StageUnset, false
	}
}

// ParseStage converts a marker value into a Stage. Blank values select stage one.
func ParseStage(value string) (Stage, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	switch Stage(normalized) {
	case StageUnset:
		return StageUnset, nil
	case StageTwo:
		return StageTwo, nil
	case StageThree:
		return StageThree, nil
	default:
		return StageUnset, UnknownStageError{Value: value}
	}
}

type stageEnvironment struct {
	Marker string `env:"SCHEMAHOP_STAGE"`
}

// ParseStageEnvironment reads the stage marker from an environment map.
func ParseStageEnvironment(environment map[string]string) (Stage, error) {
	var parsed stageEnvironment
	if parseError := env.ParseWithOptions(&parsed, env.Options{Environment: environment}); parseError != nil {
		return StageUnset, fmt.Errorf(stageEnvironmentErrorTemplateConstant, parseError)
	}
	return ParseStage(parsed.Marker)
}

// EnvironmentMap converts KEY=VALUE pairs, as returned by os.Environ, into a map.
func EnvironmentMap(assignments []string) map[string]string {
	environment := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		key, value, found := strings.Cut(assignment, "=")
		if !found {
			continue
		}
		environment[key] = value
	}
	return environment
}
