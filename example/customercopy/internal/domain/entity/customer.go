// Package entity holds the rows of the customer copy job.
package entity

import "fmt"

// Table names of the customer copy job.
const (
	CustomerTmpTable = "customer_tmp"
	CustomerTable    = "customer"
)

// CustomerTmp is a row of the source table.
type CustomerTmp struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name string `gorm:"column:name"`
}

// TableName specifies the table name for CustomerTmp.
func (CustomerTmp) TableName() string { return CustomerTmpTable }

// ItemID implements port.Identifiable.
func (c CustomerTmp) ItemID() int64 { return c.ID }

func (c CustomerTmp) String() string { return fmt.Sprintf("CustomerTmp{id=%d}", c.ID) }

// Customer is a row of the target table. The parquet tags describe the archive schema.
type Customer struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:false" parquet:"name=id, type=INT64"`
	Name string `gorm:"column:name" parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// TableName specifies the table name for Customer.
func (Customer) TableName() string { return CustomerTable }

// ItemID implements port.Identifiable.
func (c Customer) ItemID() int64 { return c.ID }

func (c Customer) String() string { return fmt.Sprintf("Customer{id=%d}", c.ID) }

// NewCustomerTmp returns the seeded source row of id.
func NewCustomerTmp(id int64) CustomerTmp {
	return CustomerTmp{ID: id, Name: fmt.Sprintf("customer #%d", id)}
}
