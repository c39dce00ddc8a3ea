package rbac

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

const (
	PermClassCreate      = "class:create"
	PermClassEnroll      = "class:enroll"
	PermClassList        = "class:list-own"
	PermClassJoin        = "class:join"
	PermClassView        = "class:view"
	PermClassUpdate      = "class:update"
	PermClassDelete      = "class:delete"
	PermTestCreate       = "test:create"
	PermTestUpdate       = "test:update"
	PermTestDelete       = "test:delete"
	PermTestView         = "test:view"
	PermTestJoin         = "test:join"
	PermQuestionCreate   = "question:create"
	PermQuestionView     = "question:view"
	PermSubmissionCreate = "submission:create"
	PermSubmissionOwn    = "submission:view-own"
	PermResultViewAll    = "result:view-all"
	PermGradeViewOwn     = "grade:view-own"
	PermUserCreate       = "user:create"
	PermUserList         = "user:list"
)

// Default policy.
var RolePermissions = map[string][]string{
	RoleStudent: {
		PermClassList,
		PermClassJoin,
		PermTestView,
		PermTestJoin,
		PermSubmissionCreate,
		PermSubmissionOwn,
		PermGradeViewOwn,
	},
	RoleTeacher: {
		PermClassCreate,
		PermClassEnroll,
		PermClassList,
		PermClassView,
		PermClassUpdate,
		PermClassDelete,
		PermTestCreate,
		PermTestUpdate,
		PermTestDelete,
		PermTestView,
		"question:*",
		PermResultViewAll,
		PermUserList,
	},
	RoleAdmin: {
		"*", // everything
	},
}
