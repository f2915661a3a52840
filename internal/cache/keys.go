package cache

import "strings"

const (
	GlobalKeyPrefix = "quizforge"

	ServiceQuiz       = "quiz"
	ServiceGeneration = "generation"
)

// GenerateCacheKey generates a cache key for a given service, object type, and identifier.
// If paramsKey are provided, they are joined by "_" and appended to the cache key.
func GenerateCacheKey(serviceName, objectType, identifier string, paramsKey ...string) string {
	baseKey := strings.Join([]string{GlobalKeyPrefix, serviceName, objectType, identifier}, ":")
	if len(paramsKey) > 0 {
		return baseKey + ":" + strings.Join(paramsKey, "_")
	}
	return baseKey
}

// QuizDetailKey caches the full quiz tree by id.
func QuizDetailKey(quizID string) string {
	return GenerateCacheKey(ServiceQuiz, "detail", quizID)
}

// SharedQuizKey maps a share token to its quiz id.
func SharedQuizKey(token string) string {
	return GenerateCacheKey(ServiceQuiz, "share", token)
}

// GenerationLockKey guards a single in-flight generation per quiz across replicas.
func GenerationLockKey(quizID string) string {
	return GenerateCacheKey(ServiceGeneration, "lock", quizID)
}
