package documentary

// stage is one row of the pipeline progress table
type stage struct {
	Number int
	Label  string
	Start  int
	End    int
}

var (
	stageIdentify  = stage{1, "Identifying artist", 10, 15}
	stageTopTracks = stage{2, "Fetching top tracks", 20, 25}
	stagePlan      = stage{3, "Planning documentary", 35, 40}
	stageSearch    = stage{4, "Searching for tracks", 50, 55}
	stageBackup    = stage{5, "Fetching backup catalog", 60, 65}
	stageGenerate  = stage{6, "Generating documentary", 75, 80}
	stageNarration = stage{7, "Generating narration", 85, 95}
)

// songsPerDocumentary is the number of songs the generator is asked for
const songsPerDocumentary = 5

func (s stage) fail(err error) error {
	return &StageError{Stage: s.Number, Label: s.Label, Err: err}
}
