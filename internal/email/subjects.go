package email

const (
	subjectCaseUrgentFmt           = "Case %s has been prioritised"
	subjectRecommendationsReadyFmt = "Advocates recommended for case %s"
	subjectAdvocateHiredFmt        = "An advocate is assigned to case %s"
	subjectCaseAssignmentFmt       = "New case assigned: %s"
	subjectCaseResolvedFmt         = "Case %s resolved"
)
