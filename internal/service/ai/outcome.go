package ai

import "fmt"

// Fault classifies why a completion did not produce a model reply.
type Fault string

const (
	FaultNone          Fault = ""
	FaultConfiguration Fault = "configuration"
	FaultAuth          Fault = "auth"
	FaultQuota         Fault = "quota"
	FaultRequest       Fault = "request"
	FaultTransport     Fault = "transport"
	FaultEmptyReply    Fault = "empty_reply"
	FaultCanceled      Fault = "canceled"
)

// 面向用户展示的固定文案。
const (
	ConfigurationText = "⚠️ 请在 .env 或环境变量中配置 DEEPSEEK_API_KEY，并填入正确的 Key。"
	AuthText          = "API Key 无效或过期，请检查配置。"
	QuotaText         = "API 余额不足，请充值。"
	EmptyReplyText    = "我现在有点累，没有返回内容，请重试。"
	TransportText     = "网络连接异常，请检查您的网络设置。"
	CanceledText      = "请求已取消。"
	RequestBuildText  = "请求构建失败，请稍后再试。"
)

// RequestFailedText is the message for any other non-200 status.
func RequestFailedText(status int) string {
	return fmt.Sprintf("API 请求失败 (%d)，请稍后再试。", status)
}

// Outcome is the single result of a completion. Text is always displayable;
// Fault tells the caller which path produced it.
type Outcome struct {
	Text       string `json:"text"`
	Fault      Fault  `json:"fault,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Err        error  `json:"-"`
}

// OK reports a genuine model reply.
func (o Outcome) OK() bool {
	return o.Fault == FaultNone
}

// Delivered reports whether Text should be shown as the assistant's reply.
// Transport failures and cancellations leave the conversation for a retry.
func (o Outcome) Delivered() bool {
	return o.Fault != FaultTransport && o.Fault != FaultCanceled
}
