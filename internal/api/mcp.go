package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/export"
	"github.com/kalambet/talentscout/internal/privacy"
	"github.com/kalambet/talentscout/internal/session"
)

const privacyNoticeURI = "talentscout://privacy-notice"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Sessions *session.Manager
	Assessor *assessment.Assessor
}

// NewMCPServer creates an MCP server with the recruiter tools and the
// privacy notice resource registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"talentscout",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("TalentScout: technical screening questions, skill evaluation and interview transcripts."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_questions",
			mcp.WithDescription("Generate technical interview questions for a tech stack at the candidate's seniority."),
			mcp.WithString("skills", mcp.Description("Comma-separated tech stack, e.g. \"Go, PostgreSQL, Docker\""), mcp.Required()),
			mcp.WithString("experience", mcp.Description("Years of experience")),
			mcp.WithString("position", mcp.Description("Position applied for")),
		),
		mcpGenerateQuestions(deps),
	)

	s.AddTool(
		mcp.NewTool("evaluate_skill",
			mcp.WithDescription("Score how relevant one skill is to a position, adjusted for seniority."),
			mcp.WithString("skill", mcp.Description("Skill to evaluate"), mcp.Required()),
			mcp.WithString("experience", mcp.Description("Years of experience")),
			mcp.WithString("position", mcp.Description("Position applied for")),
		),
		mcpEvaluateSkill(deps),
	)

	s.AddTool(
		mcp.NewTool("role_match",
			mcp.WithDescription("Estimate how well a tech stack fits a position (20-100)."),
			mcp.WithString("skills", mcp.Description("Comma-separated tech stack"), mcp.Required()),
			mcp.WithString("experience", mcp.Description("Years of experience")),
			mcp.WithString("position", mcp.Description("Position applied for")),
		),
		mcpRoleMatch(),
	)

	s.AddTool(
		mcp.NewTool("get_transcript",
			mcp.WithDescription("Return the plain-text transcript of a screening session."),
			mcp.WithString("session_id", mcp.Description("Session ID"), mcp.Required()),
		),
		mcpGetTranscript(deps),
	)

	s.AddResource(
		mcp.NewResource(
			privacyNoticeURI,
			"Privacy Notice",
			mcp.WithResourceDescription("Privacy notice candidates consent to"),
			mcp.WithMIMEType("text/plain"),
		),
		mcpResourcePrivacyNotice,
	)

	return s
}

func mcpGenerateQuestions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		skills, err := req.RequireString("skills")
		if err != nil {
			return mcpError("skills is required"), nil
		}
		set, err := deps.Assessor.Generate(ctx, skills, req.GetString("experience", ""), req.GetString("position", ""))
		if err != nil {
			return mcpError(assessment.Message(err)), nil
		}
		return mcpText(set.Markdown()), nil
	}
}

func mcpEvaluateSkill(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		skill, err := req.RequireString("skill")
		if err != nil || strings.TrimSpace(skill) == "" {
			return mcpError("skill is required"), nil
		}
		ev := deps.Assessor.Evaluate(skill, req.GetString("experience", ""), req.GetString("position", ""))
		return mcpJSON(ev)
	}
}

func mcpRoleMatch() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		skills, err := req.RequireString("skills")
		if err != nil {
			return mcpError("skills is required"), nil
		}
		score, matching := assessment.RoleMatch(skills, req.GetString("experience", ""), req.GetString("position", ""))
		if matching == nil {
			matching = []string{}
		}
		return mcpJSON(map[string]any{
			"score":           score,
			"matching_skills": matching,
		})
	}
}

func mcpGetTranscript(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		sess, err := deps.Sessions.Get(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			return mcpError(fmt.Sprintf("session %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load session: %v", err)), nil
		}
		msgs, err := deps.Sessions.Messages(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load transcript: %v", err)), nil
		}

		var b strings.Builder
		t := export.Transcript{Candidate: sess.Candidate, Messages: msgs, GeneratedAt: time.Now().UTC()}
		if err := export.TXT(&b, t); err != nil {
			return mcpError(fmt.Sprintf("failed to render transcript: %v", err)), nil
		}
		return mcpText(b.String()), nil
	}
}

func mcpResourcePrivacyNotice(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     privacy.Notice,
		},
	}, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
