package models

import (
	"time"
)

// JobStatus represents the lifecycle state of a documentary job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsActive reports whether the job counts against the per-user cap
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// MarketFromToken asks the catalog to resolve the market from the caller's account
const MarketFromToken = "from_token"

// JobParams is the immutable input snapshot of a submission.
// AccessToken is the caller's catalog bearer credential and is never serialized.
type JobParams struct {
	Topic               string `json:"topic" validate:"required,max=200"`
	Prompt              string `json:"prompt,omitempty" validate:"max=4000"`
	AccessToken         string `json:"-" validate:"required"`
	OwnerID             string `json:"ownerId" validate:"required"`
	NarrationTargetSecs int    `json:"narrationTargetSecs,omitempty" validate:"gte=0,lte=600"`
	Market              string `json:"market,omitempty" validate:"omitempty,eq=from_token|iso3166_1_alpha2"`
}

// Job is one run of the documentary pipeline
type Job struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Params     JobParams  `json:"params"`
	Status     JobStatus  `json:"status"`
	Stage      int        `json:"stage"`
	StageLabel string     `json:"stageLabel"`
	Progress   int        `json:"progress"`
	Detail     string     `json:"detail,omitempty"`
	Result     *JobResult `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy safe to hand out of the store
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Result != nil {
		c.Result = j.Result.Clone()
	}
	return &c
}

// ProgressUpdate carries the four progress fields reported at a stage boundary
type ProgressUpdate struct {
	Stage      int    `json:"stage"`
	StageLabel string `json:"stageLabel"`
	Progress   int    `json:"progress"`
	Detail     string `json:"detail,omitempty"`
}

// TrackSearchResults holds diagnostic counts from stages 4 and 5
type TrackSearchResults struct {
	Found   int `json:"found"`
	Missing int `json:"missing"`
	Backup  int `json:"backup"`
}

// JobResult is stored on a completed job
type JobResult struct {
	Data               Documentary        `json:"data"`
	PlaylistID         string             `json:"playlistId"`
	Plan               *DocumentaryPlan   `json:"plan,omitempty"`
	TrackSearchResults TrackSearchResults `json:"trackSearchResults"`
}

// Clone returns a deep copy of the result
func (r *JobResult) Clone() *JobResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Data.Timeline = CloneTimeline(r.Data.Timeline)
	if r.Plan != nil {
		p := *r.Plan
		p.RequiredTracks = append([]RequiredTrack(nil), r.Plan.RequiredTracks...)
		c.Plan = &p
	}
	return &c
}

// JobStats aggregates job counts for operational visibility
type JobStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
