package transcription

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/transcribeservice"
	"github.com/aws/aws-sdk-go/service/transcribeservice/transcribeserviceiface"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// AWSProvider runs transcription jobs on Amazon Transcribe
type AWSProvider struct {
	client       transcribeserviceiface.TranscribeServiceAPI
	outputBucket string
	jobPrefix    string
}

// NewAWSProvider creates a provider. When outputBucket is empty Transcribe
// keeps the result in a service-managed bucket and returns a pre-signed URL.
func NewAWSProvider(client transcribeserviceiface.TranscribeServiceAPI, outputBucket, jobPrefix string) *AWSProvider {
	if jobPrefix == "" {
		jobPrefix = "captions"
	}
	return &AWSProvider{
		client:       client,
		outputBucket: outputBucket,
		jobPrefix:    jobPrefix,
	}
}

// Submit starts a transcription job for the media at audioLocation.
// One language code pins the source language; several enable language
// identification restricted to those options; none lets Transcribe identify freely.
func (p *AWSProvider) Submit(ctx context.Context, audioLocation string, languages []string) (types.Job, error) {
	name := fmt.Sprintf("%s-%s", p.jobPrefix, uuid.New().String())

	input := &transcribeservice.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(name),
		Media: &transcribeservice.Media{
			MediaFileUri: aws.String(audioLocation),
		},
	}
	switch len(languages) {
	case 0:
		input.IdentifyLanguage = aws.Bool(true)
	case 1:
		input.LanguageCode = aws.String(languages[0])
	default:
		input.IdentifyLanguage = aws.Bool(true)
		input.LanguageOptions = aws.StringSlice(languages)
	}
	if p.outputBucket != "" {
		input.OutputBucketName = aws.String(p.outputBucket)
	}

	out, err := p.client.StartTranscriptionJobWithContext(ctx, input)
	if err != nil {
		return types.Job{}, types.Errorf(types.ErrJobProvider, err, "start transcription job").WithJob(name)
	}

	job := jobFromAWS(out.TranscriptionJob)
	if job.Name == "" {
		job.Name = name
	}
	log.Printf("Transcription job %s submitted for %s (status: %s)", job.Name, audioLocation, job.Status)
	return job, nil
}

// GetStatus queries the current state of a transcription job
func (p *AWSProvider) GetStatus(ctx context.Context, jobName string) (types.Job, error) {
	out, err := p.client.GetTranscriptionJobWithContext(ctx, &transcribeservice.GetTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
	})
	if err != nil {
		return types.Job{}, err
	}
	if out.TranscriptionJob == nil {
		return types.Job{}, fmt.Errorf("empty transcription job in response for %s", jobName)
	}
	return jobFromAWS(out.TranscriptionJob), nil
}

// jobFromAWS maps a Transcribe job onto the provider-neutral job model
func jobFromAWS(j *transcribeservice.TranscriptionJob) types.Job {
	if j == nil {
		return types.Job{Status: types.JobPending}
	}

	job := types.Job{
		Name:          aws.StringValue(j.TranscriptionJobName),
		FailureReason: aws.StringValue(j.FailureReason),
	}
	switch aws.StringValue(j.TranscriptionJobStatus) {
	case transcribeservice.TranscriptionJobStatusQueued:
		job.Status = types.JobPending
	case transcribeservice.TranscriptionJobStatusInProgress:
		job.Status = types.JobInProgress
	case transcribeservice.TranscriptionJobStatusCompleted:
		job.Status = types.JobCompleted
	case transcribeservice.TranscriptionJobStatusFailed:
		job.Status = types.JobFailed
	default:
		job.Status = types.JobPending
	}
	if j.Transcript != nil {
		job.TranscriptLocation = aws.StringValue(j.Transcript.TranscriptFileUri)
	}
	return job
}
