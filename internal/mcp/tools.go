package mcp

import "github.com/mark3labs/mcp-go/mcp"

// checkEligibilityTool defines the check_return_eligibility MCP tool.
var checkEligibilityTool = mcp.NewTool("check_return_eligibility",
	mcp.WithDescription("Check whether an EcoMarket order can be returned. Accepts an order id (P-1001) or an 8-digit customer id. "+
		"When eligible, the conversation waits for the customer's yes/no, to be passed to confirm_return."),
	mcp.WithString("reference",
		mcp.Required(),
		mcp.Description("Order id like P-1003 or 8-digit customer id"),
	),
	mcp.WithString("conversation_id",
		mcp.Description("Conversation to attach the pending return to. A new one is created when omitted."),
	),
)

// confirmReturnTool defines the confirm_return MCP tool.
var confirmReturnTool = mcp.NewTool("confirm_return",
	mcp.WithDescription("Pass the customer's answer to a pending return confirmation. "+
		"An affirmative answer generates the shipping label and starts the refund; a negative one cancels the return."),
	mcp.WithString("conversation_id",
		mcp.Required(),
		mcp.Description("Conversation returned by check_return_eligibility"),
	),
	mcp.WithString("answer",
		mcp.Required(),
		mcp.Description("The customer's answer, verbatim (for example \"sí\" or \"no\")"),
	),
)

// askKnowledgeTool defines the ask_knowledge_base MCP tool.
var askKnowledgeTool = mcp.NewTool("ask_knowledge_base",
	mcp.WithDescription("Answer a question about EcoMarket policies, terms, products or FAQs from the indexed documents."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The customer's question in natural language"),
	),
	mcp.WithString("conversation_id",
		mcp.Description("Conversation the question belongs to. Questions are refused while a return awaits confirmation."),
	),
)
