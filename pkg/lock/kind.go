package lock

// Kind designates an entity kind known to the engine
type Kind uint8

// entity kinds
const (
	KUnknown Kind = iota
	KDepartment
	KRole
	KPermission
	KUserRole
	KMembership
	KManual
	KManualAssignment
	KManualSection
	KPolicy
	KContent
	KContentRead
	KQuiz
	KQuizSection
	KQuestion
	KAnswer
	KQuizAttempt
	KQuizResult
	KEvent
)

var kindNames = map[Kind]string{
	KDepartment:       "Department",
	KRole:             "Role",
	KPermission:       "Permission",
	KUserRole:         "UserRole",
	KMembership:       "Membership",
	KManual:           "Manual",
	KManualAssignment: "ManualAssignment",
	KManualSection:    "ManualSection",
	KPolicy:           "Policy",
	KContent:          "Content",
	KContentRead:      "ContentRead",
	KQuiz:             "Quiz",
	KQuizSection:      "QuizSection",
	KQuestion:         "Question",
	KAnswer:           "QuizAnswer",
	KQuizAttempt:      "QuizAttempt",
	KQuizResult:       "QuizResult",
	KEvent:            "Event",
}

// table names, used in composite-key update messages
var kindTables = map[Kind]string{
	KUserRole:    "user_role",
	KContentRead: "content_read",
	KQuizResult:  "quiz_result",
	KEvent:       "events",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "Unknown"
}

// Op designates a mutation
type Op uint8

// mutations
const (
	OpInsert Op = iota + 1
	OpUpdate
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpInsert:
		return "Insert"
	case OpUpdate:
		return "Update"
	case OpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Ref is a reference to an entity by kind and id
type Ref struct {
	Kind Kind
	ID   uint32
}

// Flags are the lock flags carried by a lock root
type Flags struct {
	PreventEdit   bool
	PreventDelete bool
}

// Root is a resolved lock root along with its current flags
type Root struct {
	Ref
	Flags
}
