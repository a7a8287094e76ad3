package code

var (
	Success        = NewSuss(1, lang{en: "Success", zh_cn: "成功"})
	SuccessRestore = NewSuss(2, lang{en: "Content restored", zh_cn: "内容已恢复"})

	ErrorServerInternal = NewError(500, lang{en: "Internal server error", zh_cn: "服务器内部错误"})
	ErrorNotFoundAPI    = NewError(404, lang{en: "API not found", zh_cn: "接口不存在"})

	ErrorInvalidParams = NewError(400, lang{en: "Invalid parameters", zh_cn: "参数错误"})
	ErrorInvalidUser   = NewError(401, lang{en: "User identity missing or invalid", zh_cn: "用户身份缺失或无效"})
	ErrorDBQuery       = NewError(505, lang{en: "Database query failed", zh_cn: "数据库查询失败"})

	ErrorEntityTypeInvalid     = NewError(430, lang{en: "Unknown entity type", zh_cn: "未知的实体类型"})
	ErrorContentNotFound       = NewError(431, lang{en: "Content not found", zh_cn: "内容不存在"})
	ErrorHistoryNotFound       = NewError(432, lang{en: "History version not found", zh_cn: "历史版本不存在"})
	ErrorHistoryVersionInvalid = NewError(433, lang{en: "History version out of range", zh_cn: "历史版本超出范围"})
	ErrorHistoryRecordFailed   = NewError(434, lang{en: "Failed to record history", zh_cn: "记录历史失败"})
	ErrorContentAlreadyDeleted = NewError(435, lang{en: "Content is already deleted", zh_cn: "内容已删除"})
	ErrorContentNotDeleted     = NewError(436, lang{en: "Content is not deleted", zh_cn: "内容未删除"})
)
