package sessionsvc

// UserKey holds the identity of the last logged in learner.
const UserKey = "learnai-user"

const enrollmentsKeyPrefix = "learnai-enrollments-"

// EnrollmentsKey returns the key holding the enrollment list of the learner with the
// given normalized email.
func EnrollmentsKey(email string) string {
	return enrollmentsKeyPrefix + email
}
