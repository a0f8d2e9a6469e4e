package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/minutemate/minutemate/engine/core"
	"github.com/minutemate/minutemate/engine/infra/server/appstate"
	"github.com/minutemate/minutemate/engine/infra/server/router"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/minutemate/minutemate/engine/pipeline"
)

// TranscriptRequest is the payload the browser extension posts after a
// meeting ends.
type TranscriptRequest struct {
	Platform     string `json:"platform"`
	MeetingID    string `json:"meetingId"`
	Title        string `json:"title"`
	Transcript   string `json:"transcript"`
	ManagerEmail string `json:"managerEmail"`
}

func registerMeetingRoutes(api *gin.RouterGroup) {
	meetings := api.Group("/meetings")
	meetings.POST("/transcript", submitTranscript)
	meetings.GET("/:meetingId/tasks", listTasks)
	meetings.POST("/:meetingId/tasks/:fingerprint/assign", assignTask)
}

func pipelineFrom(c *gin.Context) (appstate.Pipeline, bool) {
	state, err := appstate.GetState(c.Request.Context())
	if err != nil {
		router.RespondWithServerError(c, router.ErrInternalCode, router.ErrMsgAppStateNotInitialized, err)
		return nil, false
	}
	return state.Pipeline, true
}

// bindJSON reports oversized bodies as 413 and everything else as 400.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		router.RespondWithError(c, http.StatusRequestEntityTooLarge,
			router.NewRequestError(http.StatusRequestEntityTooLarge, "request body too large", err))
		return false
	}
	router.RespondWithError(c, http.StatusBadRequest,
		router.NewRequestError(http.StatusBadRequest, "invalid request body", err))
	return false
}

// Submit a meeting transcript
//
//	@Summary      Process a meeting transcript
//	@Description  Extracts action items, files one ticket per task and notifies owners
//	@Tags         meetings
//	@Accept       json
//	@Produce      json
//	@Success      201 {object} pipeline.Result "Run completed"
//	@Failure      400 {object} router.ErrorInfo "Invalid payload"
//	@Failure      502 {object} pipeline.Result "Extraction failed"
//	@Router       /api/v0/meetings/transcript [post]
func submitTranscript(c *gin.Context) {
	p, ok := pipelineFrom(c)
	if !ok {
		return
	}
	var req TranscriptRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, err := meeting.NewSubmission(meeting.Input{
		MeetingID:    req.MeetingID,
		Title:        req.Title,
		Platform:     req.Platform,
		Transcript:   req.Transcript,
		ManagerEmail: req.ManagerEmail,
	})
	if err != nil {
		reqErr := router.NewRequestError(http.StatusBadRequest, "invalid submission", err)
		reqErr.Code = core.ErrCodeInvalidSubmission
		router.RespondWithError(c, http.StatusBadRequest, reqErr)
		return
	}
	res := p.Process(c.Request.Context(), sub)
	if res.Failed() {
		router.RespondWithData(c, http.StatusBadGateway, "transcript could not be processed", res)
		return
	}
	router.RespondCreated(c, "transcript processed", res)
}

// List meeting tasks
//
//	@Summary      List the tasks of a meeting
//	@Tags         meetings
//	@Produce      json
//	@Param        meetingId path  string true  "Meeting ID"
//	@Param        refresh   query bool   false "Re-read ticket statuses from the tracker"
//	@Success      200 {object} map[string]interface{} "Tasks retrieved"
//	@Router       /api/v0/meetings/{meetingId}/tasks [get]
func listTasks(c *gin.Context) {
	p, ok := pipelineFrom(c)
	if !ok {
		return
	}
	refresh := false
	if raw := c.Query("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			router.RespondWithError(c, http.StatusBadRequest,
				router.NewRequestError(http.StatusBadRequest, "refresh must be a boolean", err))
			return
		}
		refresh = v
	}
	meetingID := c.Param("meetingId")
	outcomes, err := p.Tasks(c.Request.Context(), meetingID, refresh)
	if err != nil {
		respondPipelineError(c, "failed to list tasks", err)
		return
	}
	router.RespondOK(c, "tasks retrieved", gin.H{
		"meeting_id": meetingID,
		"tasks":      outcomes,
	})
}

// Assign a task
//
//	@Summary      Assign a task to an owner
//	@Tags         meetings
//	@Accept       json
//	@Produce      json
//	@Param        meetingId   path string true "Meeting ID"
//	@Param        fingerprint path string true "Task fingerprint"
//	@Success      200 {object} pipeline.Outcome "Task assigned"
//	@Failure      400 {object} router.ErrorInfo "Invalid owner"
//	@Failure      404 {object} router.ErrorInfo "Task not found"
//	@Failure      409 {object} router.ErrorInfo "Task has no ticket"
//	@Router       /api/v0/meetings/{meetingId}/tasks/{fingerprint}/assign [post]
func assignTask(c *gin.Context) {
	p, ok := pipelineFrom(c)
	if !ok {
		return
	}
	var in pipeline.AssignInput
	if !bindJSON(c, &in) {
		return
	}
	in, err := in.Normalize()
	if err != nil {
		respondPipelineError(c, "invalid owner", err)
		return
	}
	out, err := p.AssignTask(c.Request.Context(), c.Param("meetingId"), c.Param("fingerprint"), in)
	if err != nil {
		respondPipelineError(c, "failed to assign task", err)
		return
	}
	router.RespondOK(c, "task assigned", out)
}

func respondPipelineError(c *gin.Context, reason string, err error) {
	switch {
	case errors.Is(err, pipeline.ErrTaskNotFound):
		router.RespondWithError(c, http.StatusNotFound, router.NewRequestError(http.StatusNotFound, "task not found", err))
	case errors.Is(err, pipeline.ErrNoTicket):
		router.RespondWithError(c, http.StatusConflict, router.NewRequestError(http.StatusConflict, reason, err))
	case errors.Is(err, pipeline.ErrNoStore):
		router.RespondWithError(c, http.StatusServiceUnavailable,
			router.NewRequestError(http.StatusServiceUnavailable, "task store not configured", err))
	default:
		reqErr := router.FromDomainError(reason, err)
		router.RespondWithError(c, reqErr.StatusCode, reqErr)
	}
}
