package hooks

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/afero"

	pathutils "github.com/temirov/schemahop/internal/utils/path"
)

const (
	gitDirectoryNameConstant           = ".git"
	hooksDirectoryNameConstant         = "hooks"
	postCheckoutFileNameConstant       = "post-checkout"
	headerTemplateNameConstant         = "header.tmpl"
	bodyTemplateNameConstant           = "post-checkout.tmpl"
	templatePatternConstant            = "templates/*.tmpl"
	hookFilePermissionsConstant        = 0o755
	notGitRepositoryMessageConstant    = "does not appear to contain a git repo"
	missingHooksDirectoryMessage       = "does not contain a 'hooks' directory"
	existingHookMessageConstant        = "already contains a post-checkout hook; rerun with --append to extend it"
	destinationErrorTemplateConstant   = "'%s' %s"
	destinationRequiredMessageConstant = "hook destination must be provided"
	executableRequiredMessageConstant  = "executable path must be provided"
	renderTemplateErrorTemplate        = "unable to render hook template %s: %w"
	writeHookErrorTemplate             = "unable to write hook %s: %w"
	inspectPathErrorTemplate           = "unable to inspect %s: %w"
	shellQuoteFunctionNameConstant     = "shellQuote"
	shellSingleQuoteConstant           = "'"
	shellEscapedSingleQuoteConstant    = `'\''`
)

//go:embed templates/*.tmpl
var hookTemplateFiles embed.FS

var hookTemplates = template.Must(
	template.New(bodyTemplateNameConstant).
		Funcs(template.FuncMap{shellQuoteFunctionNameConstant: shellQuote}).
		ParseFS(hookTemplateFiles, templatePatternConstant),
)

// shellQuote renders value as a single POSIX shell word.
func shellQuote(value string) string {
	return shellSingleQuoteConstant + strings.ReplaceAll(value, shellSingleQuoteConstant, shellEscapedSingleQuoteConstant) + shellSingleQuoteConstant
}

// ErrFilesystemNotConfigured indicates that the installer lacks a filesystem.
var ErrFilesystemNotConfigured = errors.New("hook installer filesystem not configured")

// ErrDestinationRequired indicates that no destination repository was provided.
var ErrDestinationRequired = errors.New(destinationRequiredMessageConstant)

// ErrExecutableRequired indicates that no executable path was provided.
var ErrExecutableRequired = errors.New(executableRequiredMessageConstant)

// DestinationError reports a destination that cannot receive the hook.
type DestinationError struct {
	Path    string
	Message string
}

// Error describes the unusable destination.
func (destinationError DestinationError) Error() string {
	return fmt.Sprintf(destinationErrorTemplateConstant, destinationError.Path, destinationError.Message)
}

// InstallOptions configures a hook installation.
type InstallOptions struct {
	Destination string
	Executable  string
	Append      bool
}

// InstallResult describes the written hook.
type InstallResult struct {
	HookPath string
	Appended bool
}

type hookTemplateData struct {
	HookPath   string
	Executable string
}

// Installer writes post-checkout hooks into git repositories.
type Installer struct {
	fileSystem   afero.Fs
	homeExpander *pathutils.HomeExpander
}

// NewInstaller constructs an Installer. A nil expander leaves destinations unexpanded.
func NewInstaller(fileSystem afero.Fs, homeExpander *pathutils.HomeExpander) (*Installer, error) {
	if fileSystem == nil {
		return nil, ErrFilesystemNotConfigured
	}
	return &Installer{fileSystem: fileSystem, homeExpander: homeExpander}, nil
}

// Install validates the destination and writes or extends its post-checkout hook.
func (installer *Installer) Install(options InstallOptions) (InstallResult, error) {
	destination := strings.TrimSpace(options.Destination)
	if len(destination) == 0 {
		return InstallResult{}, ErrDestinationRequired
	}
	executable := strings.TrimSpace(options.Executable)
	if len(executable) == 0 {
		return InstallResult{}, ErrExecutableRequired
	}
	destination = installer.homeExpander.Expand(destination)

	hooksDirectory := filepath.Join(destination, gitDirectoryNameConstant, hooksDirectoryNameConstant)
	hookPath := filepath.Join(hooksDirectory, postCheckoutFileNameConstant)

	gitDirectoryExists, gitInspectError := installer.isDirectory(filepath.Join(destination, gitDirectoryNameConstant))
	if gitInspectError != nil {
		return InstallResult{}, gitInspectError
	}
	if !gitDirectoryExists {
		return InstallResult{}, DestinationError{Path: destination, Message: notGitRepositoryMessageConstant}
	}

	hooksDirectoryExists, hooksInspectError := installer.isDirectory(hooksDirectory)
	if hooksInspectError != nil {
		return InstallResult{}, hooksInspectError
	}
	if !hooksDirectoryExists {
		return InstallResult{}, DestinationError{Path: destination, Message: missingHooksDirectoryMessage}
	}

	hookExists, hookInspectError := afero.Exists(installer.fileSystem, hookPath)
	if hookInspectError != nil {
		return InstallResult{}, fmt.Errorf(inspectPathErrorTemplate, hookPath, hookInspectError)
	}
	if hookExists && !options.Append {
		return InstallResult{}, DestinationError{Path: destination, Message: existingHookMessageConstant}
	}

	data := hookTemplateData{HookPath: hookPath, Executable: executable}
	var contents bytes.Buffer
	if !hookExists {
		if renderError := hookTemplates.ExecuteTemplate(&contents, headerTemplateNameConstant, data); renderError != nil {
			return InstallResult{}, fmt.Errorf(renderTemplateErrorTemplate, headerTemplateNameConstant, renderError)
		}
	}
	if renderError := hookTemplates.ExecuteTemplate(&contents, bodyTemplateNameConstant, data); renderError != nil {
		return InstallResult{}, fmt.Errorf(renderTemplateErrorTemplate, bodyTemplateNameConstant, renderError)
	}

	if writeError := installer.appendHook(hookPath, contents.Bytes()); writeError != nil {
		return InstallResult{}, fmt.Errorf(writeHookErrorTemplate, hookPath, writeError)
	}

	return InstallResult{HookPath: hookPath, Appended: hookExists}, nil
}

func (installer *Installer) appendHook(hookPath string, contents []byte) error {
	hookFile, openError := installer.fileSystem.OpenFile(hookPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, hookFilePermissionsConstant)
	if openError != nil {
		return openError
	}
	if _, writeError := hookFile.Write(contents); writeError != nil {
		_ = hookFile.Close()
		return writeError
	}
	if closeError := hookFile.Close(); closeError != nil {
		return closeError
	}
	return installer.fileSystem.Chmod(hookPath, hookFilePermissionsConstant)
}

func (installer *Installer) isDirectory(candidatePath string) (bool, error) {
	directoryExists, inspectError := afero.DirExists(installer.fileSystem, candidatePath)
	if inspectError != nil {
		return false, fmt.Errorf(inspectPathErrorTemplate, candidatePath, inspectError)
	}
	return directoryExists, nil
}
