package lock

import (
	"fmt"
	"strings"
)

var messages = map[Kind]map[Op]string{
	KDepartment: {
		OpUpdate: "Cannot edit department while edit lock is set",
		OpDelete: "Cannot delete department while delete lock is set",
	},
	KRole: {
		OpUpdate: "Cannot edit role while edit lock is set",
		OpDelete: "Cannot delete role while delete lock is set",
	},
	KPermission: {
		OpUpdate: "Cannot edit permissions while edit lock is set",
	},
	KMembership: {
		OpDelete: "Cannot delete membership while delete lock is set",
	},
	KManual: {
		OpUpdate: "Manual is locked from editing.",
		OpDelete: "Cannot delete manual while delete lock is set",
	},
	KManualSection: {
		OpInsert: "Cannot insert a section while the manual is locked",
		OpUpdate: "Cannot update a section while the manual is locked from editing",
		OpDelete: "Cannot delete a section while the manual is locked from editing",
	},
	KPolicy: {
		OpInsert: "Cannot insert a policy while the manual is locked",
		OpUpdate: "Cannot update a policy while the manual is locked from editing",
		OpDelete: "Cannot delete a policy while the manual is locked from editing",
	},
	KContent: {
		OpInsert: "Cannot insert content while the manual is locked",
		OpUpdate: "Cannot update content while the manual is locked from editing",
		OpDelete: "Cannot delete content while the manual is locked from editing",
	},
	KQuiz: {
		OpUpdate: "Quiz is locked from editing.",
		OpDelete: "Cannot delete quiz while delete lock is set",
	},
	KQuizSection: {
		OpInsert: "Cannot insert a section while the quiz is locked",
		OpUpdate: "Cannot update a section while the quiz is locked from editing",
		OpDelete: "Cannot delete a section while the quiz is locked from editing",
	},
	KQuestion: {
		OpInsert: "Cannot insert a question while the quiz is locked",
		OpUpdate: "Cannot update a question while the quiz is locked from editing",
		OpDelete: "Cannot delete a question while the quiz is locked from editing",
	},
	KAnswer: {
		OpInsert: "Cannot insert an answer while the quiz is locked",
		OpUpdate: "Cannot update an answer while the quiz is locked from editing",
		OpDelete: "Cannot delete an answer while the quiz is locked from editing",
	},
	KQuizAttempt: {
		OpInsert: "Cannot start an attempt while the quiz is locked",
	},
}

func message(kind Kind, op Op) string {
	if msg, ok := messages[kind][op]; ok {
		return msg
	}

	return fmt.Sprintf("Cannot %s %s while the lock is set", strings.ToLower(op.String()), strings.ToLower(kind.String()))
}
