// Package protocol defines the chat session wire format.
//
// Every frame is a JSON object with a "type" discriminator.
//
// Message Types (Client → Server):
//   - start: Begin a session, optionally continuing conversation_id
//   - resume: Reattach to conversation_id without a new greeting
//   - message: User message with optional image attachments
//   - ping: Keep-alive ping
//   - accept_feature / reject_feature: Answer a suggestion by feature_index
//   - done: Finish an expansion session
//
// Message Types (Server → Client):
//   - text: Assistant text fragment
//   - tool_call: Agent tool invocation (tool, input)
//   - response_done: Assistant turn finished
//   - error: Application error (content)
//   - conversation_created: Server assigned conversation_id
//   - pong: Keep-alive reply
//   - history: Replayed messages and pending suggestions
//   - feature_suggestion, feature_created, feature_rejected: Chat-to-features
//   - features_created, expansion_complete: Project expansion
//
// Example Usage:
//
//	data, err := protocol.Encode(protocol.Start("42"))
//	frame, err := protocol.Decode(raw)
package protocol
