package dif

// Subroutines maps DIF_SUBR ids to names, including the Darwin additions at 200.
var Subroutines = map[uint16]string{
	0:  "rand",
	1:  "mutex_owned",
	2:  "mutex_owner",
	3:  "mutex_type_adaptive",
	4:  "mutex_type_spin",
	5:  "rw_read_held",
	6:  "rw_write_held",
	7:  "rw_iswriter",
	8:  "copyin",
	9:  "copyinstr",
	10: "speculation",
	11: "progenyof",
	12: "strlen",
	13: "copyout",
	14: "copyoutstr",
	15: "alloca",
	16: "bcopy",
	17: "copyinto",
	18: "msgdsize",
	19: "msgsize",
	20: "getmajor",
	21: "getminor",
	22: "ddi_pathname",
	23: "strjoin",
	24: "lltostr",
	25: "basename",
	26: "dirname",
	27: "cleanpath",
	28: "strchr",
	29: "strrchr",
	30: "strstr",
	31: "strtok",
	32: "substr",
	33: "index",
	34: "rindex",
	35: "htons",
	36: "htonl",
	37: "htonll",
	38: "ntohs",
	39: "ntohl",
	40: "ntohll",
	41: "inet_ntop",
	42: "inet_ntoa",
	43: "inet_ntoa6",
	44: "toupper",
	45: "tolower",

	200: "vm_kernel_addrperm",
	201: "kdebug_trace",
	202: "kdebug_trace_string",
}

// SubrName returns the subroutine name, or "" when id is unknown.
func SubrName(id uint16) string {
	return Subroutines[id]
}
