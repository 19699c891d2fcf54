package repository

import "strconv"

// Storage layout:
//
//	users/{id}/name
//	users/{id}/created_at
//	users/{id}/tokens/{tier}
//	votes/{taskKey}/{userID}/{voteID}
//	tasks/{taskID}
//	meta/last_updated
//
// Vote records were historically also written as an untagged JSON array
// directly at votes/{taskKey}/{userID}; reads normalize that shape.
const (
	usersRoot = "users"
	votesRoot = "votes"
	tasksRoot = "tasks"

	// LastUpdatedPath is bumped inside every ledger-affecting batch so
	// pollers can cheaply detect changes.
	LastUpdatedPath = "meta/last_updated"
)

// CollectionRoots lists the top-level subtrees that make up a full data
// snapshot.
var CollectionRoots = []string{usersRoot, votesRoot, tasksRoot, "meta"}

func userPath(id string) string        { return usersRoot + "/" + id }
func userNamePath(id string) string    { return userPath(id) + "/name" }
func userCreatedPath(id string) string { return userPath(id) + "/created_at" }

func tokensPath(id string) string { return userPath(id) + "/tokens" }

func tokenPath(id string, tier int) string {
	return tokensPath(id) + "/" + strconv.Itoa(tier)
}

func taskVotesPath(taskKey string) string { return votesRoot + "/" + taskKey }

func userVotesPath(taskKey, userID string) string {
	return taskVotesPath(taskKey) + "/" + userID
}

func votePath(taskKey, userID, voteID string) string {
	return userVotesPath(taskKey, userID) + "/" + voteID
}

func taskPath(id string) string { return tasksRoot + "/" + id }
