package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ageshift/internal/domain"
	"ageshift/internal/gemini"
	"ageshift/internal/repository"
)

// stageInstructions are the edit prompts sent to the generation service,
// one per target age. Identity, pose and background are pinned so only the
// apparent age changes.
var stageInstructions = map[domain.AgeStage]string{
	domain.StageChild:      "Transform the person in this photo to look like an 8 year old child. Keep the same identity, facial features, pose, clothing style and background.",
	domain.StageMiddleAged: "Transform the person in this photo to look like a 45 year old adult. Keep the same identity, facial features, pose, clothing style and background.",
	domain.StageElderly:    "Transform the person in this photo to look like an 80 year old elderly person. Keep the same identity, facial features, pose, clothing style and background.",
}

type TransformService interface {
	Transform(ctx context.Context, source domain.EncodedImage) ([]domain.StageResult, *domain.HistoryEntry, error)
	History(ctx context.Context) ([]domain.HistoryEntry, error)
}

type transformService struct {
	editor  gemini.ImageEditor
	history repository.HistoryRepository
	log     *zap.Logger
}

func NewTransformService(editor gemini.ImageEditor, history repository.HistoryRepository, log *zap.Logger) TransformService {
	return &transformService{
		editor:  editor,
		history: history,
		log:     log,
	}
}

// Transform fires the three stage edits concurrently and waits for every
// one to settle. A failed stage never cancels its siblings; each result is
// collected independently. A history entry is recorded only when all three
// stages produce an image.
func (s *transformService) Transform(ctx context.Context, source domain.EncodedImage) ([]domain.StageResult, *domain.HistoryEntry, error) {
	if !source.IsImage() {
		return nil, nil, domain.NewTransformError(domain.FailureInvalidInput,
			"uploaded payload is not an image (mime type %q)", source.MimeType)
	}

	stages := domain.Stages()
	results := make([]domain.StageResult, len(stages))

	var wg sync.WaitGroup
	for i, stage := range stages {
		wg.Add(1)
		go func(i int, stage domain.AgeStage) {
			defer wg.Done()

			img, err := s.editor.EditImage(ctx, domain.TransformationRequest{
				Source:      source,
				Instruction: stageInstructions[stage],
			})
			if err != nil {
				results[i] = domain.StageResult{Stage: stage, Err: err}
				return
			}
			results[i] = domain.StageResult{Stage: stage, Image: &img}
		}(i, stage)
	}
	wg.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			s.log.Warn("Stage failed",
				zap.String("stage", string(res.Stage)),
				zap.String("kind", string(domain.KindOf(res.Err))),
				zap.Error(res.Err))
		}
	}

	if failed > 0 {
		s.log.Info("Transformation settled with failures",
			zap.Int("failed", failed),
			zap.Int("total", len(stages)))
		return results, nil, nil
	}

	entry, err := s.history.Add(ctx, domain.HistoryEntry{
		Original:   source,
		Child:      *results[0].Image,
		MiddleAged: *results[1].Image,
		Elderly:    *results[2].Image,
	})
	if err != nil {
		// The variants are still usable; only the history record is lost.
		s.log.Error("Failed to record history entry", zap.Error(err))
		return results, nil, nil
	}

	s.log.Info("Transformation completed",
		zap.String("history_id", entry.ID),
		zap.String("mime_type", source.MimeType))

	return results, &entry, nil
}

func (s *transformService) History(ctx context.Context) ([]domain.HistoryEntry, error) {
	return s.history.List(ctx)
}
