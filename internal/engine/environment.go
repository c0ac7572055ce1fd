package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

const (
	environmentFileReadErrorTemplate  = "unable to read environment file %s: %w"
	environmentFileParseErrorTemplate = "unable to parse environment file %s: %w"
)

// EnvironmentLookup resolves process environment variables.
type EnvironmentLookup func(key string) (string, bool)

// loadEnvironmentFile parses a dotenv file. A missing file yields no variables.
func loadEnvironmentFile(fileSystem afero.Fs, environmentFilePath string) (map[string]string, error) {
	if len(environmentFilePath) == 0 {
		return map[string]string{}, nil
	}
	environmentFile, openError := fileSystem.Open(environmentFilePath)
	if openError != nil {
		if errors.Is(openError, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf(environmentFileReadErrorTemplate, environmentFilePath, openError)
	}
	defer environmentFile.Close()

	parsed, parseError := godotenv.Parse(environmentFile)
	if parseError != nil {
		return nil, fmt.Errorf(environmentFileParseErrorTemplate, environmentFilePath, parseError)
	}
	return parsed, nil
}

// withoutProcessOverrides drops file variables already set in the process
// environment, matching dotenv loading where real variables take precedence.
func withoutProcessOverrides(fileVariables map[string]string, lookup EnvironmentLookup) map[string]string {
	filtered := make(map[string]string, len(fileVariables))
	for variableName, variableValue := range fileVariables {
		if _, present := lookup(variableName); present {
			continue
		}
		filtered[variableName] = variableValue
	}
	return filtered
}
