package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/codebuildervaibhav/audio-captions/internal/captions"
	"github.com/codebuildervaibhav/audio-captions/internal/storage"
	"github.com/codebuildervaibhav/audio-captions/internal/transcription"
	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// DefaultProvider names the raw artifacts produced by the AWS Transcribe provider
const DefaultProvider = "aws-transcribe"

// Run stages reported through Progress
const (
	StageSubmit  = "submit"
	StageAwait   = "await"
	StageFetch   = "fetch"
	StageCaption = "caption"
	StagePersist = "persist"
)

// TranscriptFetcher downloads the raw transcript of a completed job
type TranscriptFetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// CaptionWriter persists one caption set and can take it back
type CaptionWriter interface {
	Write(ctx context.Context, documentID, language string, cues []types.Cue) (string, error)
	Discard(ref string) error
}

// BlobStore keeps raw transcript documents
type BlobStore interface {
	SaveRaw(documentID, jobName string, raw []byte) (string, error)
	LoadRaw(key string) ([]byte, error)
}

// RawStore records which raw artifacts exist for a document
type RawStore interface {
	RecordRaw(ctx context.Context, art types.RawArtifact) (int64, error)
	LatestRaw(ctx context.Context, documentID, provider string) (types.RawArtifact, error)
}

// CaptionIndex holds the document-level caption map
type CaptionIndex interface {
	SaveCaptions(ctx context.Context, documentID string, tracks []types.CaptionTrack) error
}

// Publisher copies committed caption tracks elsewhere, best effort
type Publisher interface {
	Publish(ctx context.Context, documentID string, tracks []types.CaptionTrack)
}

// Event describes progress of one run
type Event struct {
	Stage   string        `json:"stage"`
	Job     types.Job     `json:"job"`
	Polls   int           `json:"polls,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// Progress receives the events of one run; it may be nil
type Progress func(Event)

func (p Progress) emit(e Event) {
	if p != nil {
		p(e)
	}
}

// Request describes one caption run
type Request struct {
	DocumentID    string
	AudioLocation string   // media to submit; ignored when JobName is set
	JobName       string   // an already submitted transcription job
	Languages     []string // transcription language options
	Targets       []string // caption translation targets
	Progress      Progress
}

// Result is the outcome of a successful run
type Result struct {
	Job    types.Job
	Raw    types.RawArtifact
	Sets   []types.CaptionSet
	Tracks []types.CaptionTrack
}

// Dependencies are the collaborators of a Pipeline
type Dependencies struct {
	Provider   transcription.JobProvider
	Fetcher    TranscriptFetcher
	Translator captions.Translator
	Writer     CaptionWriter
	Blobs      BlobStore
	Raw        RawStore
	Index      CaptionIndex
	Publisher  Publisher // optional
	Segmenter  *captions.Segmenter
}

// Pipeline turns transcription jobs into translated caption tracks
type Pipeline struct {
	deps         Dependencies
	providerName string
	pollInterval time.Duration
	timeout      time.Duration
}

// New creates a pipeline. Zero poll interval and timeout use the awaiter defaults.
func New(deps Dependencies, providerName string, pollInterval, timeout time.Duration) *Pipeline {
	if providerName == "" {
		providerName = DefaultProvider
	}
	if deps.Segmenter == nil {
		deps.Segmenter = captions.NewSegmenter(0, 0, "")
	}
	return &Pipeline{
		deps:         deps,
		providerName: providerName,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Provider returns the provider name raw artifacts are recorded under
func (p *Pipeline) Provider() string {
	return p.providerName
}

// Run transcribes the request and captions the resulting transcript
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	job, art, err := p.Transcribe(ctx, req)
	if err != nil {
		return Result{Job: job}, err
	}

	res, err := p.Caption(ctx, req.DocumentID, p.providerName, req.Targets, req.Progress)
	res.Job = job
	if res.Raw.Key == "" {
		res.Raw = art
	}
	return res, err
}

// Transcribe submits or resumes the transcription job, waits for it and
// stores the raw transcript as the newest raw artifact of the document.
func (p *Pipeline) Transcribe(ctx context.Context, req Request) (types.Job, types.RawArtifact, error) {
	if req.DocumentID == "" {
		return types.Job{}, types.RawArtifact{}, errors.New("document id is required")
	}

	job, err := p.startJob(ctx, req)
	if err != nil {
		return job, types.RawArtifact{}, err
	}

	req.Progress.emit(Event{Stage: StageAwait, Job: job})
	awaiter := transcription.NewAwaiter(p.deps.Provider, p.pollInterval, p.timeout)
	awaiter.OnPoll = func(j types.Job, polls int, elapsed time.Duration) {
		req.Progress.emit(Event{Stage: StageAwait, Job: j, Polls: polls, Elapsed: elapsed})
	}
	job, err = awaiter.Await(ctx, job)
	if err != nil {
		return job, types.RawArtifact{}, err
	}

	if job.Status == types.JobFailed {
		log.Printf("Pipeline: job %s failed: %s", job.Name, job.FailureReason)
		return job, types.RawArtifact{}, types.Errorf(types.ErrJobFailed, nil, "%s", job.FailureReason).WithJob(job.Name)
	}

	req.Progress.emit(Event{Stage: StageFetch, Job: job})
	raw, err := p.deps.Fetcher.Fetch(ctx, job.TranscriptLocation)
	if err != nil {
		if types.KindOf(err) == "" {
			err = types.Errorf(types.ErrTranscriptFetch, err, "fetch %s", job.TranscriptLocation)
		}
		var e *types.Error
		if errors.As(err, &e) && e.Job == "" {
			e.Job = job.Name
		}
		return job, types.RawArtifact{}, err
	}

	key, err := p.deps.Blobs.SaveRaw(req.DocumentID, job.Name, raw)
	if err != nil {
		return job, types.RawArtifact{}, types.Errorf(types.ErrPersistence, err, "store raw transcript").WithJob(job.Name)
	}

	art := types.RawArtifact{
		DocumentID: req.DocumentID,
		Provider:   p.providerName,
		JobName:    job.Name,
		Key:        key,
		CreatedAt:  time.Now(),
	}
	if art.ID, err = p.deps.Raw.RecordRaw(ctx, art); err != nil {
		return job, types.RawArtifact{}, types.Errorf(types.ErrPersistence, err, "record raw transcript").WithJob(job.Name)
	}

	log.Printf("Pipeline: stored raw transcript of job %s for %s (%d bytes)", job.Name, req.DocumentID, len(raw))
	return job, art, nil
}

// startJob submits new audio or looks up the current state of an existing job
func (p *Pipeline) startJob(ctx context.Context, req Request) (types.Job, error) {
	req.Progress.emit(Event{Stage: StageSubmit, Job: types.Job{Name: req.JobName}})

	if req.JobName != "" {
		job, err := p.deps.Provider.GetStatus(ctx, req.JobName)
		if err != nil {
			return types.Job{Name: req.JobName}, types.Errorf(types.ErrJobProvider, err, "status query failed").WithJob(req.JobName)
		}
		if job.Name == "" {
			job.Name = req.JobName
		}
		return job, nil
	}

	if req.AudioLocation == "" {
		return types.Job{}, errors.New("audio location or job name is required")
	}
	job, err := p.deps.Provider.Submit(ctx, req.AudioLocation, req.Languages)
	if err != nil {
		return job, types.Errorf(types.ErrJobProvider, err, "submit %s", req.AudioLocation)
	}
	log.Printf("Pipeline: submitted job %s for %s", job.Name, req.DocumentID)
	return job, nil
}

// Caption builds caption tracks for every target language from the newest
// raw artifact of provider and replaces the document caption map.
// Either every track is persisted and indexed or none is.
func (p *Pipeline) Caption(ctx context.Context, documentID, provider string, targets []string, progress Progress) (Result, error) {
	progress.emit(Event{Stage: StageCaption})

	art, err := p.deps.Raw.LatestRaw(ctx, documentID, provider)
	if errors.Is(err, storage.ErrNotFound) {
		return Result{}, types.Errorf(types.ErrRawArtifactMissing, nil, "no %s transcript for document %s", provider, documentID)
	}
	if err != nil {
		return Result{}, types.Errorf(types.ErrPersistence, err, "look up raw transcript")
	}

	body, err := p.deps.Blobs.LoadRaw(art.Key)
	if errors.Is(err, os.ErrNotExist) {
		return Result{Raw: art}, types.Errorf(types.ErrRawArtifactMissing, err, "raw transcript %s is gone", art.Key).WithJob(art.JobName)
	}
	if err != nil {
		return Result{Raw: art}, types.Errorf(types.ErrPersistence, err, "load raw transcript").WithJob(art.JobName)
	}

	transcript, err := transcription.Parse(body)
	if err != nil {
		var e *types.Error
		if errors.As(err, &e) && e.Job == "" {
			e.Job = art.JobName
		}
		return Result{Raw: art}, err
	}

	original := types.CaptionSet{
		LanguageCode: transcript.SourceLanguage(),
		Cues:         p.deps.Segmenter.Segment(transcript.Tokens),
	}

	sets, err := captions.Align(ctx, original, targets, p.deps.Translator)
	if err != nil {
		return Result{Raw: art}, err
	}

	progress.emit(Event{Stage: StagePersist})
	tracks, err := p.persist(ctx, documentID, sets)
	if err != nil {
		return Result{Raw: art}, err
	}
	if p.deps.Publisher != nil {
		p.deps.Publisher.Publish(ctx, documentID, tracks)
	}

	log.Printf("Pipeline: %s captioned in %d languages from %s", documentID, len(tracks), art.JobName)
	return Result{Raw: art, Sets: sets, Tracks: tracks}, nil
}

// persist writes every set and saves the caption map, rolling back written files on failure
func (p *Pipeline) persist(ctx context.Context, documentID string, sets []types.CaptionSet) ([]types.CaptionTrack, error) {
	tracks := make([]types.CaptionTrack, 0, len(sets))
	rollback := func() {
		for _, t := range tracks {
			if err := p.deps.Writer.Discard(t.ArtifactRef); err != nil {
				log.Printf("Pipeline: failed to discard %s: %v", t.ArtifactRef, err)
			}
		}
	}

	for _, set := range sets {
		ref, err := p.deps.Writer.Write(ctx, documentID, set.LanguageCode, set.Cues)
		if err != nil {
			rollback()
			return nil, types.Errorf(persistKind(ctx), err, "write captions").WithLanguage(set.LanguageCode)
		}
		tracks = append(tracks, types.CaptionTrack{LanguageCode: set.LanguageCode, ArtifactRef: ref, CreatedAt: time.Now()})
	}

	if err := p.deps.Index.SaveCaptions(ctx, documentID, tracks); err != nil {
		rollback()
		return nil, types.Errorf(persistKind(ctx), err, "save caption map of %s", documentID)
	}
	return tracks, nil
}

// persistKind reports a failure caused by cancellation as Cancelled
func persistKind(ctx context.Context) types.ErrorKind {
	if ctx.Err() != nil {
		return types.ErrCancelled
	}
	return types.ErrPersistence
}

// String helps log lines identify a request
func (r Request) String() string {
	if r.JobName != "" {
		return fmt.Sprintf("%s (job %s)", r.DocumentID, r.JobName)
	}
	return fmt.Sprintf("%s (%s)", r.DocumentID, r.AudioLocation)
}
