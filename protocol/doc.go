// Package protocol recovers structure from the generative backend's single
// text reply.
//
// The reply is expected to use a tagged envelope, but adherence is
// probabilistic, so extraction is plain delimiter search with a fixed
// contract:
//
//   - tags are matched exactly and case-sensitively, without attributes
//     ("<chat_response>" matches, "<Chat_Response>" and "<chat_response id=1>" do not);
//   - for each field the first opening tag is taken, then the first closing tag
//     after it (first match, non-greedy);
//   - the enclosed text is returned byte-for-byte: no trimming, no unescaping,
//     no validation of nesting;
//   - a missing opening or closing tag yields the empty value for that field.
//
// Two grammars are recognised, in any combination:
//
//	<response>
//	  <chat_response>...</chat_response>
//	  <playground_data>...</playground_data>
//	</response>
//
//	<component>...</component>
//	<cdnLinks><link>...</link></cdnLinks>
//	<error>...</error>
//
// Field content is data only. Nothing here interprets it.
package protocol
