package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/assistant"
	"github.com/ecomarket/ecobot/internal/flow"
	"github.com/ecomarket/ecobot/internal/fulfillment"
	"github.com/ecomarket/ecobot/internal/returns"
	"github.com/ecomarket/ecobot/internal/router"
)

// toolResult is the JSON body of every successful tool call.
type toolResult struct {
	ConversationID string                     `json:"conversation_id"`
	Phase          string                     `json:"phase"`
	Reply          string                     `json:"reply"`
	Eligibility    *returns.EligibilityResult `json:"eligibility,omitempty"`
	Decision       string                     `json:"decision,omitempty"`
	Label          *fulfillment.LabelResult   `json:"label,omitempty"`
	Refund         *fulfillment.RefundResult  `json:"refund,omitempty"`
}

// handleCheckEligibility evaluates a reference inside a conversation.
func (s *Server) handleCheckEligibility(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reference, err := request.RequireString("reference")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: reference"), nil
	}
	id := request.GetString("conversation_id", "")
	if id == "" {
		id = assistant.NewID(mcpChannel)
	}

	return s.dispatch(ctx, id, router.Intent{Kind: router.KindCheckEligibility, Reference: reference, Text: reference})
}

// handleConfirmReturn applies the customer's answer to the pending return.
func (s *Server) handleConfirmReturn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: conversation_id"), nil
	}
	answer, err := request.RequireString("answer")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: answer"), nil
	}

	state, err := s.conversations.State(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading conversation: %v", err)), nil
	}
	if state.Phase() != flow.PhaseAwaitingConfirmation {
		return mcp.NewToolResultError(fmt.Sprintf(
			"conversation %q has no return awaiting confirmation. Call check_return_eligibility first.", id,
		)), nil
	}

	return s.dispatch(ctx, id, router.Intent{Kind: router.KindConfirm, Text: answer})
}

// handleAskKnowledge answers a question from the knowledge base.
func (s *Server) handleAskKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	id := request.GetString("conversation_id", "")
	if id == "" {
		id = assistant.NewID(mcpChannel)
	}

	return s.dispatch(ctx, id, router.Intent{Kind: router.KindKnowledgeQuery, Text: question})
}

func (s *Server) dispatch(ctx context.Context, id string, intent router.Intent) (*mcp.CallToolResult, error) {
	reply, err := s.conversations.Dispatch(ctx, id, intent)
	if err != nil {
		s.logger.Error("mcp tool call", zap.String("conversation", id), zap.String("intent", string(intent.Kind)), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("conversation unavailable: %v", err)), nil
	}

	res := toolResult{
		ConversationID: id,
		Reply:          reply.Text,
		Eligibility:    reply.Eligibility,
	}
	if out := reply.Outcome; out != nil {
		res.Decision = out.Decision.String()
		res.Label = out.Label
		res.Refund = out.Refund
	}
	if state, err := s.conversations.State(ctx, id); err == nil {
		res.Phase = state.Phase().String()
	}

	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
