package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ayurgenix/internal/core"
	"ayurgenix/internal/dataset"
	"ayurgenix/internal/db"
	"ayurgenix/internal/report"
	"ayurgenix/pkg"
)

const (
	msgProfileFirst = "Please save your profile first."
	msgNoAPIKey     = "API key not set."
)

func speaker(r pkg.MessageRole) string {
	if r == pkg.RoleUser {
		return "You"
	}
	return "AyurGenix AI"
}

// isHTMX reports whether the request came from the HTMX chat page.
func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// handleIndexPage renders the welcome page.
func (s *Server) handleIndexPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"Status": s.datasetStatus()})
}

// handleStartConsultation creates a session from the welcome page form and
// redirects to its chat page.
func (s *Server) handleStartConsultation(c *gin.Context) {
	sess, err := s.Store.CreateSession(c.Request.Context(), s.MessageCap)
	if err != nil {
		fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/sessions/"+sess.ID)
}

// handleCreateSession creates a new anonymous session and returns a JSON
// response with the session ID.
func (s *Server) handleCreateSession(c *gin.Context) {
	sess, err := s.Store.CreateSession(c.Request.Context(), s.MessageCap)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"start_url":  "/sessions/" + sess.ID,
	})
}

// handleSessionPage renders the chat interface: profile form, transcript
// and dataset status.
func (s *Server) handleSessionPage(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	transcript, err := s.Store.GetTranscript(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "session.html", gin.H{
		"Session":       sess,
		"Transcript":    transcript,
		"Status":        s.datasetStatus(),
		"LLMReady":      s.llmReady(),
		"GenderOptions": core.GenderOptions,
		"DoshaOptions":  core.DoshaOptions,
		"StressOptions": core.StressOptions,
	})
}

// handleGetSession returns the session and its transcript as JSON.
func (s *Server) handleGetSession(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	transcript, err := s.Store.GetTranscript(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	used, err := s.Store.CountUserMessages(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "transcript": transcript, "user_messages": used})
}

// handleSaveProfile validates and stores the profile, which starts a new
// conversation, then greets the user when the LLM is available.
func (s *Server) handleSaveProfile(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	var req pkg.ProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid profile: " + err.Error()})
		return
	}
	profile, err := core.NormalizeProfile(req)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Store.SaveProfile(ctx, id, profile); err != nil {
		fail(c, err)
		return
	}
	greeting, err := s.greet(ctx, id, profile)
	if err != nil {
		fail(c, err)
		return
	}
	if isHTMX(c) {
		c.Header("HX-Refresh", "true")
		c.Status(http.StatusNoContent)
		return
	}
	resp := gin.H{"profile": profile, "greeting": greeting}
	if !s.llmReady() {
		resp["warning"] = msgNoAPIKey
	}
	c.JSON(http.StatusOK, resp)
}

// greet stores the opening assistant message of a consultation.  Without an
// LLM nothing is sent and the greeting flag stays unset.
func (s *Server) greet(ctx context.Context, sessionID string, profile pkg.Profile) (string, error) {
	if !s.llmReady() {
		return "", nil
	}
	greeting, err := s.Chat.Greet(ctx, profile)
	if err != nil {
		slog.Warn("greeting generation failed", "session", sessionID, "error", err)
	}
	if _, err := s.Store.CreateMessage(ctx, sessionID, pkg.RoleModel, greeting); err != nil {
		return "", err
	}
	if err := s.Store.MarkGreeted(ctx, sessionID); err != nil {
		return "", err
	}
	return greeting, nil
}

// handlePostMessage runs one consultation turn: it stores the user message,
// matches it against the condition table, asks the LLM and stores the
// reply.  HTMX requests get an HTML fragment to append to the transcript,
// everything else a ChatResponse.
func (s *Server) handlePostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	var req pkg.ChatRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	if !sess.ProfileSaved {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": msgProfileFirst})
		return
	}
	if !s.llmReady() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": msgNoAPIKey})
		return
	}

	// Enforce message cap.  Capped turns are answered but not stored.
	if _, err := s.Store.CreateUserMessage(ctx, id, req.Content); err != nil {
		if errors.Is(err, db.ErrMessageCapReached) {
			s.respondTurn(c, "", pkg.ChatResponse{Reply: core.CapMessage, Capped: true})
			return
		}
		fail(c, err)
		return
	}
	transcript, err := s.Store.GetTranscript(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	ans, err := s.Chat.Reply(ctx, sess.Profile, transcript, req.Content)
	if err != nil {
		slog.Warn("reply generation failed", "session", id, "error", err)
	}
	if _, err := s.Store.CreateMessage(ctx, id, pkg.RoleModel, ans.Reply); err != nil {
		fail(c, err)
		return
	}
	s.respondTurn(c, req.Content, pkg.ChatResponse{Reply: ans.Reply, Matches: len(ans.Matches)})
}

func (s *Server) respondTurn(c *gin.Context, question string, resp pkg.ChatResponse) {
	if !isHTMX(c) {
		c.JSON(http.StatusOK, resp)
		return
	}
	var b strings.Builder
	if question != "" {
		b.WriteString(`<div class="message user">` + template.HTMLEscapeString(question) + `</div>`)
	}
	b.WriteString(`<div class="message bot">` + string(renderMarkdown(resp.Reply)) + `</div>`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(b.String()))
}

// handleReset starts a new consultation with the saved profile.
func (s *Server) handleReset(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := s.Store.ResetConversation(ctx, id); err != nil {
		fail(c, err)
		return
	}
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	var greeting string
	if sess.ProfileSaved {
		if greeting, err = s.greet(ctx, id, sess.Profile); err != nil {
			fail(c, err)
			return
		}
	}
	if isHTMX(c) {
		c.Header("HX-Refresh", "true")
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"greeting": greeting})
}

// handleReport downloads the consultation as markdown or PDF.
func (s *Server) handleReport(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	transcript, err := s.Store.GetTranscript(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	if len(transcript) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no conversation to report yet"})
		return
	}

	now := s.Now()
	var body []byte
	switch format {
	case report.PDF:
		var buf bytes.Buffer
		if err := report.RenderPDF(&buf, sess.Profile, transcript, now); err != nil {
			fail(c, err)
			return
		}
		body = buf.Bytes()
	default:
		body = []byte(report.RenderMarkdown(sess.Profile, transcript, now))
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.Filename(format, now)+`"`)
	c.Data(http.StatusOK, format.ContentType(), body)
}

func (s *Server) datasetStatus() pkg.DatasetStatus {
	if s.Index == nil {
		return pkg.DatasetStatus{Error: "no dataset configured"}
	}
	ds := s.Index.Load()
	st := pkg.DatasetStatus{Loaded: s.Index.Err() == nil, Conditions: ds.Len()}
	if err := s.Index.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// handleDatasetStatus reports whether the condition table is available.
func (s *Server) handleDatasetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.datasetStatus())
}

// handleDatasetMatches shows which rows a query would send to the model.
func (s *Server) handleDatasetMatches(c *gin.Context) {
	q := c.Query("q")
	var ds *dataset.Dataset
	if s.Index != nil {
		ds = s.Index.Load()
	}
	matches := core.Match(ds, q)
	if matches == nil {
		matches = []dataset.Record{}
	}
	c.JSON(http.StatusOK, gin.H{
		"query":   q,
		"matches": matches,
		"context": core.FormatContext(matches),
	})
}
