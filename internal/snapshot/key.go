package snapshot

import (
	"fmt"
	"path"
	"strings"
)

const (
	nodesFileNameConstant              = "nodes.json"
	branchDirectoryNameConstant        = "branch"
	branchNameEmptyMessageConstant     = "branch name must be provided"
	branchNameTraversalMessageConstant = "branch name must not contain '..' path segments"
	branchNameAbsoluteMessageConstant  = "branch name must be relative"
	invalidKeyErrorTemplateConstant    = "invalid snapshot key %q: %s"
	parentDirectorySegmentConstant     = ".."
	pathSeparatorConstant              = "/"
)

// Key addresses one snapshot document relative to the store root.
type Key struct {
	relativePath string
}

// String returns the slash-separated relative path of the document.
func (key Key) String() string {
	return key.relativePath
}

// InvalidKeyError reports a branch name that cannot address a snapshot.
type InvalidKeyError struct {
	Value   string
	Message string
}

// Error describes the invalid key.
func (invalidKeyError InvalidKeyError) Error() string {
	return fmt.Sprintf(invalidKeyErrorTemplateConstant, invalidKeyError.Value, invalidKeyError.Message)
}

// SingleSlotKey addresses the repository-wide snapshot handed from stage one to stage two.
func SingleSlotKey() Key {
	return Key{relativePath: nodesFileNameConstant}
}

// BranchKey addresses the snapshot dumped for a branch. Branch names such as
// feature/login map to nested directories.
func BranchKey(branchName string) (Key, error) {
	trimmedBranchName := strings.TrimSpace(branchName)
	if len(trimmedBranchName) == 0 {
		return Key{}, InvalidKeyError{Value: branchName, Message: branchNameEmptyMessageConstant}
	}
	if strings.HasPrefix(trimmedBranchName, pathSeparatorConstant) {
		return Key{}, InvalidKeyError{Value: branchName, Message: branchNameAbsoluteMessageConstant}
	}
	for _, segment := range strings.Split(trimmedBranchName, pathSeparatorConstant) {
		if segment == parentDirectorySegmentConstant {
			return Key{}, InvalidKeyError{Value: branchName, Message: branchNameTraversalMessageConstant}
		}
	}
	return Key{relativePath: path.Join(branchDirectoryNameConstant, trimmedBranchName, nodesFileNameConstant)}, nil
}
