package domain

import "strings"

// Project derives one ConversationSummary per conversation partner from the
// raw cross-conversation message set. Peers are every identity that appears
// as sender or recipient, excluding the current user, in first-appearance
// order. Each summary carries the newest message exchanged with that peer.
//
// Project is pure: identical inputs always yield identical output.
func Project(all []Message, current Identity) []ConversationSummary {
	var peers []Identity
	seen := make(map[string]struct{})
	for _, m := range all {
		for _, p := range []Identity{m.Sender, m.Recipient} {
			if p.Zero() || p.Is(current) {
				continue
			}
			if _, ok := seen[p.CanonicalName]; ok {
				continue
			}
			seen[p.CanonicalName] = struct{}{}
			peers = append(peers, p)
		}
	}

	summaries := make([]ConversationSummary, 0, len(peers))
	for _, peer := range peers {
		summaries = append(summaries, summarize(all, current, peer))
	}
	return summaries
}

// ProjectDirectory derives inbox summaries against a user directory. With an
// empty query the candidate set is the prior-contact peers, in directory
// order. With a non-empty query the whole directory is searched instead, so
// conversations can be started with users never messaged before. These are
// two read-models over the same directory, switched by the query.
func ProjectDirectory(users []Identity, all []Message, current Identity, query string) []ConversationSummary {
	query = strings.TrimSpace(query)

	var candidates []Identity
	if query == "" {
		contacted := make(map[string]struct{})
		for _, m := range all {
			contacted[m.Sender.CanonicalName] = struct{}{}
			contacted[m.Recipient.CanonicalName] = struct{}{}
		}
		for _, u := range users {
			if u.Is(current) {
				continue
			}
			if _, ok := contacted[u.CanonicalName]; ok {
				candidates = append(candidates, u)
			}
		}
	} else {
		q := strings.ToLower(query)
		for _, u := range users {
			if u.Is(current) {
				continue
			}
			if strings.Contains(strings.ToLower(u.CanonicalName), q) {
				candidates = append(candidates, u)
			}
		}
	}

	summaries := make([]ConversationSummary, 0, len(candidates))
	for _, peer := range candidates {
		summaries = append(summaries, summarize(all, current, peer))
	}
	return summaries
}

// summarize picks the newest message exchanged between current and peer.
// Peers with no exchanged messages get a nil LastMessage ("no messages
// yet"); they still appear in the list.
func summarize(all []Message, current, peer Identity) ConversationSummary {
	var last *Message
	for i := range all {
		m := all[i]
		if !m.Involves(current, peer) {
			continue
		}
		if last == nil || m.Timestamp.After(last.Timestamp) {
			last = &all[i]
		}
	}
	var copied *Message
	if last != nil {
		c := *last
		copied = &c
	}
	return ConversationSummary{Peer: peer, LastMessage: copied}
}
