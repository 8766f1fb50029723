package shellcmd

import "strings"

// Classifier judges whether an approved command is safe to remember beyond
// the current session. Destructive or context-specific commands must not be
// silently persisted just because the user approved one instance.
type Classifier interface {
	SafeToRemember(command string) bool
}

// destructiveBinaries never qualify for silent persistence.
var destructiveBinaries = map[string]bool{
	"rm":       true,
	"rmdir":    true,
	"dd":       true,
	"mkfs":     true,
	"shred":    true,
	"truncate": true,
	"shutdown": true,
	"reboot":   true,
	"halt":     true,
	"kill":     true,
	"killall":  true,
	"pkill":    true,
}

// contextSpecificMarkers make a command meaningless outside the directory or
// process it was approved in.
var contextSpecificMarkers = []string{
	"$(", "`", "~", "../",
}

type defaultClassifier struct{}

// NewClassifier returns the default command classifier.
func NewClassifier() Classifier {
	return defaultClassifier{}
}

func (defaultClassifier) SafeToRemember(command string) bool {
	for _, sub := range SplitCompound(command) {
		if destructiveBinaries[Binary(sub)] {
			return false
		}
		if strings.Contains(sub, "--force") || strings.Contains(sub, "-rf") {
			return false
		}
		for _, marker := range contextSpecificMarkers {
			if strings.Contains(sub, marker) {
				return false
			}
		}
		if strings.Contains(sub, "sudo ") || Binary(sub) == "sudo" {
			return false
		}
	}
	return true
}
