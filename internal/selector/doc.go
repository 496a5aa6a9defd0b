// Package selector decides which server address the agent should talk to.
//
// Managed devices roam between the server's LAN and remote networks, so the
// agent carries two candidate hosts: the local address (preferred) and a
// VPN overlay address (failover). A plain TCP dial against the server port
// decides reachability. The winning answer is cached in the state store for
// a week; a session disconnect or a network change drops the cache, and a
// periodic re-test refreshes it even on stable networks.
package selector
