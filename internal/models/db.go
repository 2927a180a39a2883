package models

import (
	"time"

	"gorm.io/gorm"
)

// SimCard is the simulator's persisted subscriber row. Column names are pinned
// because the simulator filters and sorts on them by name.
type SimCard struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	CLI                string     `gorm:"column:cli;uniqueIndex;size:20;not null" json:"cli"`
	MSISDN             string     `gorm:"column:msisdn;index;size:20;not null" json:"msisdn"`
	Status             string     `gorm:"column:status;size:20;default:'Activated'" json:"status"`
	RatePlan           string     `gorm:"column:rate_plan;size:50" json:"rate_plan"`
	CustomerLabel1     string     `gorm:"column:customer_label_1;size:200" json:"label1"`
	CustomerLabel2     string     `gorm:"column:customer_label_2;size:200" json:"label2"`
	CustomerLabel3     string     `gorm:"column:customer_label_3;size:200" json:"label3"`
	SimSwap            string     `gorm:"column:sim_swap;size:30" json:"iccid"`
	IMSI               string     `gorm:"column:imsi;size:20" json:"imsi"`
	IMEI               string     `gorm:"column:imei;size:20" json:"imei"`
	APNName            string     `gorm:"column:apn_name;size:64" json:"apn"`
	IP1                string     `gorm:"column:ip1;size:45" json:"ip"`
	MonthlyUsageMB     int64      `gorm:"column:monthly_usage_mb" json:"usage_mb"`
	AllocatedMB        int64      `gorm:"column:allocated_mb" json:"allocated_mb"`
	PrepaidDataBalance float64    `gorm:"column:prepaid_data_balance" json:"prepaid_data_balance"`
	LastSessionTime    *time.Time `gorm:"column:last_session_time" json:"last_session"`
	InSession          *bool      `gorm:"column:in_session" json:"in_session"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type ProvisioningJob struct {
	ID                   uint                    `gorm:"primaryKey"`
	Status               string                  `gorm:"index;size:20;not null"`
	RequestTime          int64                   `gorm:"not null"`
	LastActionTime       int64                   `gorm:"not null"`
	RequestedApplication string                  `gorm:"size:100"`
	Username             string                  `gorm:"size:100"`
	Actions              []ProvisioningJobAction `gorm:"foreignKey:JobID"`
}

type ProvisioningJobAction struct {
	ID             uint   `gorm:"primaryKey"`
	JobID          uint   `gorm:"index;not null"`
	NeID           string `gorm:"column:ne_id;size:20;not null"`
	Status         string `gorm:"size:20;not null"`
	CompletionTime int64
	RequestType    string `gorm:"size:50;not null"`
	TargetID       string `gorm:"column:target_id;size:50"`
	InitialValue   string
	TargetValue    string
	ErrorMsg       string
	ErrorDesc      string
}

// APIUser is an account allowed to call the simulated API.
type APIUser struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
}

// APISession is created by login and removed by logout.
type APISession struct {
	ID        string `gorm:"primaryKey;size:36"`
	Username  string `gorm:"index;size:100"`
	CreatedAt time.Time
	ExpiresAt time.Time
}
