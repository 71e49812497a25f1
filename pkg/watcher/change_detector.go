package watcher

// ChangeAnalysis describes what a batch of changes means for the loaded records
type ChangeAnalysis struct {
	NeedReload   bool
	SourceGone   bool
	ChangedFiles []string
}

// AnalyzeChanges decides how the record source should react to a change event
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeModified:
		analysis.NeedReload = true

	case ChangeTypeRemoved:
		// Keep serving the last good snapshot until the file comes back
		analysis.SourceGone = true
	}

	return analysis
}
