package api

import (
	"net/http"
	"strconv"

	"ai-health-navigator/internal/notify"
	"ai-health-navigator/internal/recovery"
	"ai-health-navigator/internal/shared"
	"ai-health-navigator/internal/triage"

	"github.com/gin-gonic/gin"
)

// Handler serves the browser front end.
type Handler struct {
	registry *recovery.Registry
	triage   *triage.Service
	inbox    *notify.Inbox
}

// NewHandler creates a new Handler. inbox may be nil when notices are not
// delivered over HTTP.
func NewHandler(registry *recovery.Registry, triageSvc *triage.Service, inbox *notify.Inbox) *Handler {
	return &Handler{registry: registry, triage: triageSvc, inbox: inbox}
}

// RegisterRoutes registers the authenticated routes on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/intake", h.intake)
	rg.GET("/plan", h.getPlan)
	rg.POST("/plan/tasks/:id/toggle", h.toggleTask)
	rg.POST("/plan/next", h.nextDay)
	rg.POST("/condition", h.reportCondition)
	rg.POST("/symptoms", h.checkSymptoms)
	rg.POST("/voice", h.analyzeVoice)
	rg.POST("/checkins", h.submitCheckin)
	rg.GET("/notices", h.notices)
}

type intakeRequest struct {
	Weight         string `json:"weight"`
	Height         string `json:"height"`
	Age            string `json:"age"`
	Gender         string `json:"gender"`
	Symptoms       string `json:"symptoms"`
	MedicalHistory string `json:"medicalHistory"`
	Lifestyle      string `json:"lifestyle"`
}

// sessionResponse is the full view of a user's session.
type sessionResponse struct {
	State          recovery.State     `json:"state"`
	Day            int                `json:"day"`
	Plan           *recovery.DayPlan  `json:"plan,omitempty"`
	History        []recovery.DayPlan `json:"history"`
	DraftSymptoms  string             `json:"draftSymptoms,omitempty"`
	AdvancePending bool               `json:"advancePending"`
}

type conditionRequest struct {
	Condition recovery.Condition `json:"condition"`
}

type symptomsRequest struct {
	Symptoms string `json:"symptoms"`
}

type voiceRequest struct {
	Transcript string `json:"transcript"`
}

type voiceResponse struct {
	StressLevel string `json:"stressLevel,omitempty"`
	Emotion     string `json:"emotion,omitempty"`
	Confidence  int    `json:"confidence,omitempty"`
	Message     string `json:"message,omitempty"`
	Text        string `json:"text"`
}

type checkinRequest struct {
	Mood   string   `json:"mood"`
	Sleep  *float64 `json:"sleep"`
	Stress string   `json:"stress"`
}

func (h *Handler) session(c *gin.Context) (*recovery.Session, bool) {
	s, err := h.registry.Get(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) intake(c *gin.Context) {
	var req intakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	plan, err := h.registry.Manager().GenerateInitialPlan(c.Request.Context(), s, recovery.HealthProfile{
		Weight:         req.Weight,
		Height:         req.Height,
		Age:            req.Age,
		Gender:         req.Gender,
		Symptoms:       req.Symptoms,
		MedicalHistory: req.MedicalHistory,
		Lifestyle:      req.Lifestyle,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *Handler) getPlan(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(s))
}

func (h *Handler) toggleTask(c *gin.Context) {
	taskID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_input", "task id must be a number")
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	plan, err := h.registry.Manager().ToggleTask(c.Request.Context(), s, taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan, "advancePending": s.AdvancePending()})
}

func (h *Handler) nextDay(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	plan, err := h.registry.Manager().GenerateNextDayPlan(c.Request.Context(), s, s.CurrentDay()+1)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) reportCondition(c *gin.Context) {
	var req conditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	if err := h.registry.Manager().ReportCondition(c.Request.Context(), s, req.Condition); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(s))
}

func (h *Handler) checkSymptoms(c *gin.Context) {
	var req symptomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}

	advice, err := h.triage.CheckSymptoms(c.Request.Context(), userIDFromContext(c), req.Symptoms)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advice": advice.Text})
}

func (h *Handler) analyzeVoice(c *gin.Context) {
	var req voiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}

	analysis, err := h.triage.AnalyzeTranscript(c.Request.Context(), userIDFromContext(c), req.Transcript)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, voiceResponse{
		StressLevel: analysis.StressLevel,
		Emotion:     analysis.Emotion,
		Confidence:  analysis.Confidence,
		Message:     analysis.Message,
		Text:        analysis.Text,
	})
}

func (h *Handler) submitCheckin(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}
	if req.Sleep == nil {
		writeError(c, &shared.ValidationError{Field: "sleep", Message: "please enter valid sleep hours (0-24)"})
		return
	}

	err := h.triage.SubmitCheckin(c.Request.Context(), triage.Checkin{
		UserID: userIDFromContext(c),
		Mood:   req.Mood,
		Sleep:  *req.Sleep,
		Stress: req.Stress,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Check-in saved. Take care of yourself."})
}

func (h *Handler) notices(c *gin.Context) {
	notices := []noticeResponse{}
	if h.inbox != nil {
		for _, n := range h.inbox.Drain(userIDFromContext(c)) {
			notices = append(notices, noticeResponse{Level: string(n.Level), Title: n.Title, Message: n.Message})
		}
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}

type noticeResponse struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func toSessionResponse(s *recovery.Session) sessionResponse {
	resp := sessionResponse{
		State:          s.State(),
		Day:            s.CurrentDay(),
		History:        s.History(),
		DraftSymptoms:  s.DraftSymptoms(),
		AdvancePending: s.AdvancePending(),
	}
	if plan, ok := s.CurrentPlan(); ok {
		resp.Plan = &plan
	}
	if resp.History == nil {
		resp.History = []recovery.DayPlan{}
	}
	return resp
}
