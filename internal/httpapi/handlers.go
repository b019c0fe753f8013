package httpapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/fsutil"
	"github.com/gofiber/fiber/v2"
)

const (
	bearerPrefix     = "Bearer "
	referenceID      = "reference"
	downloadRoute    = "/download/"
	headerCacheCtrl  = "Cache-Control"
	cacheCtrlNoCache = "no-cache"
)

type generateSpeechRequest struct {
	InputText string `json:"input_text"`
	Voice     string `json:"voice"`
	VoiceName string `json:"voice_name"`
}

type createVoiceAPIRequest struct {
	AudioPath string `json:"audio_path"`
	TextPath  string `json:"text_path"`
	VoiceName string `json:"voice_name"`
}

type createAPIKeyRequest struct {
	APIName string `json:"api_name"`
}

type apiTTSRequest struct {
	Text       string `json:"text"`
	VoiceID    string `json:"voice_id"`
	OutputPath string `json:"output_path"`
}

type apiTTSResponse struct {
	Success    bool    `json:"success"`
	OutputPath string  `json:"output_path"`
	AudioURL   *string `json:"audio_url"`
	VoiceID    string  `json:"voice_id"`
	VoiceName  string  `json:"voice_name"`
	TextLength int     `json:"text_length"`
	WordCount  int     `json:"word_count"`
	Chunks     int     `json:"chunks"`
	Duration   float64 `json:"duration_seconds"`
}

type questionAudioRequest struct {
	Question string `json:"question"`
}

type evaluateRequest struct {
	SessionID string   `json:"session_id"`
	Questions []string `json:"questions"`
	Answers   []string `json:"answers"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	err := s.svc.Health(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "error": err.Error()})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	name := filepath.Base(c.Params("filename"))

	for _, dir := range []string{s.svc.Pipeline().OutputDir(), s.svc.ReportsDir()} {
		path := filepath.Join(dir, name)
		if fsutil.FileExists(path) {
			return c.Download(path, name)
		}
	}

	return fiber.NewError(fiber.StatusNotFound, "file not found: "+name)
}

func (s *Server) handleUploadReference(c *fiber.Ctx) error {
	file, header, err := audioFormFile(c, "audio")
	if err != nil {
		return err
	}
	defer file.Close()

	ref, err := s.svc.RegisterReferenceVoice(c.UserContext(), file, header.Filename)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"audio_path": ref.AudioPath,
		"text_path":  ref.TextPath,
		"transcript": ref.Transcript,
		"ref_id":     referenceID,
	})
}

func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	file, header, err := audioFormFile(c, "audio")
	if err != nil {
		return err
	}
	defer file.Close()

	transcript, err := s.svc.Transcribe(c.UserContext(), file, header.Filename)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"transcript": transcript})
}

func (s *Server) handleGenerateSpeech(c *fiber.Ctx) error {
	var req generateSpeechRequest

	err := parseBody(c, &req)
	if err != nil {
		return err
	}

	return s.synthesize(c, req.InputText, req.Voice)
}

func (s *Server) handleGenerateSpeechWithVoice(c *fiber.Ctx) error {
	var req generateSpeechRequest

	err := parseBody(c, &req)
	if err != nil {
		return err
	}

	if strings.TrimSpace(req.VoiceName) == "" {
		return fmt.Errorf("%w: voice_name", core.ErrInputMissing)
	}

	return s.synthesize(c, req.InputText, req.VoiceName)
}

func (s *Server) synthesize(c *fiber.Ctx, input, voiceRef string) error {
	result, err := s.svc.Synthesize(c.UserContext(), input, voiceRef, "")
	if err != nil {
		return err
	}

	c.Set(headerCacheCtrl, cacheCtrlNoCache)

	return c.JSON(fiber.Map{
		"output_path":      result.OutputPath,
		"audio_url":        downloadURL(c, result.OutputPath),
		"chunks":           result.Chunks,
		"word_count":       result.WordCount,
		"duration_seconds": result.Duration,
	})
}

func (s *Server) handleGetVoices(c *fiber.Ctx) error {
	profiles, err := s.svc.ListVoices(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"voices": profiles})
}

func (s *Server) handleCreateVoiceAPI(c *fiber.Ctx) error {
	var req createVoiceAPIRequest

	err := parseBody(c, &req)
	if err != nil {
		return err
	}

	mapping, err := s.svc.IssueVoiceAPIMapping(req.AudioPath, req.TextPath, req.VoiceName)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"voice_id":   mapping.VoiceID,
		"api_key":    mapping.APIKey,
		"voice_name": mapping.VoiceName,
	})
}

func (s *Server) handleCreatePredefinedAPIs(c *fiber.Ctx) error {
	created, err := s.svc.CreatePredefinedAPIs(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"created_apis": created.Mappings,
		"api_key":      created.APIKey,
		"message":      fmt.Sprintf("Created APIs for %d predefined voices", len(created.Mappings)),
	})
}

func (s *Server) handleSaveCustomVoice(c *fiber.Ctx) error {
	var req createVoiceAPIRequest

	err := parseBody(c, &req)
	if err != nil {
		return err
	}

	mapping, err := s.svc.SaveCustomVoice(c.UserContext(), req.VoiceName, req.AudioPath, req.TextPath)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"voice_id":   mapping.VoiceID,
		"voice_name": mapping.VoiceName,
		"api_key":    mapping.APIKey,
		"message":    fmt.Sprintf("Voice %q saved successfully", mapping.VoiceName),
	})
}

func (s *Server) handleGetCustomVoices(c *fiber.Ctx) error {
	custom, err := s.svc.ListCustomVoices(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"voices": custom})
}

func (s *Server) handleCreateAPIKey(c *fiber.Ctx) error {
	var req createAPIKeyRequest

	err := parseBody(c, &req)
	if err != nil {
		return err
	}

	issued, err := s.svc.IssueAPIKey(req.APIName)
	if err != nil {
		return err
	}

	return c.JSON(issued)
}

func (s *Server) handleAPITTS(c *fiber.Ctx) error {
	apiKey, err := bearerToken(c)
	if err != nil {
		return err
	}

	var req apiTTSRequest

	// Unknown keys are denied before the body is validated.
	parseErr := parseBody(c, &req)
	if parseErr != nil && s.svc.Keys().Exists(apiKey) {
		return parseErr
	}

	result, err := s.svc.SynthesizeAuthorized(c.UserContext(), apiKey, req.VoiceID, req.Text, req.OutputPath)
	if err != nil {
		return err
	}

	response := apiTTSResponse{
		Success:    true,
		OutputPath: result.OutputPath,
		VoiceID:    result.VoiceID,
		VoiceName:  result.VoiceName,
		TextLength: result.TextLength,
		WordCount:  result.WordCount,
		Chunks:     result.Chunks,
		Duration:   result.Duration,
	}

	if strings.TrimSpace(req.OutputPath) == "" {
		url := downloadURL(c, result.OutputPath)
		response.AudioURL = &url
	}

	return c.JSON(response)
}

func (s *Server) handleAPIVoices(c *fiber.Ctx) error {
	apiKey, err := bearerToken(c)
	if err != nil {
		return err
	}

	visible, err := s.svc.ListVoicesForKey(apiKey)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"voices": visible, "total_voices": len(visible)})
}

func (s *Server) handleProcessCVInterview(c *fiber.Ctx) error {
	file, header, err := formFile(c, "cv")
	if err != nil {
		return err
	}
	defer file.Close()

	cv, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read CV upload: %w", err)
	}

	started, err := s.svc.StartInterview(c.UserContext(), cv, header.Filename, c.FormValue("candidate_name"))
	if err != nil {
		return err
	}

	if started.FirstQuestionAudio != "" {
		started.FirstQuestionAudio = downloadURL(c, started.FirstQuestionAudio)
	}

	return c.JSON(started)
}

func (s *Server) handleGenerateQuestionAudio(c *fiber.Ctx) error {
	var req questionAudioRequest

	err := parseBody(c, &req)
	if err != nil {
		return err
	}

	path, err := s.svc.GenerateQuestionAudio(c.UserContext(), req.Question)
	if err != nil {
		return err
	}

	if path == "" {
		return c.JSON(fiber.Map{"audio_url": nil})
	}

	return c.JSON(fiber.Map{"audio_url": downloadURL(c, path)})
}

func (s *Server) handleEvaluateInterview(c *fiber.Ctx) error {
	var req evaluateRequest

	err := parseBody(c, &req)
	if err != nil {
		return err
	}

	evaluated, err := s.svc.SubmitAnswersAndEvaluate(c.UserContext(), req.SessionID, req.Questions, req.Answers)
	if err != nil {
		return err
	}

	var report any
	if evaluated.ReportPath != "" {
		report = filepath.Base(evaluated.ReportPath)
	}

	return c.JSON(fiber.Map{
		"evaluation": evaluated.Evaluation,
		"pdf_report": report,
		"attempt":    evaluated.Attempt,
	})
}

func parseBody(c *fiber.Ctx, target any) error {
	err := c.BodyParser(target)
	if err != nil {
		return fmt.Errorf("%w: request body: %w", core.ErrInputMissing, err)
	}

	return nil
}

func formFile(c *fiber.Ctx, field string) (multipart.File, *multipart.FileHeader, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s file", core.ErrInputMissing, field)
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s upload: %w", field, err)
	}

	return file, header, nil
}

// audioFormFile is formFile restricted to audio uploads.
func audioFormFile(c *fiber.Ctx, field string) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := formFile(c, field)
	if err != nil {
		return nil, nil, err
	}

	if !fsutil.IsValidAudioFile(header.Filename) {
		_ = file.Close()

		return nil, nil, fmt.Errorf("%w: %s is not an audio file", core.ErrConversionFailure, header.Filename)
	}

	return file, header, nil
}

func bearerToken(c *fiber.Ctx) (string, error) {
	auth := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", core.NewAuthorizationError(core.DenialUnknownKey, "missing or invalid authorization")
	}

	return strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix)), nil
}

func downloadURL(c *fiber.Ctx, path string) string {
	return c.BaseURL() + downloadRoute + filepath.Base(path)
}
